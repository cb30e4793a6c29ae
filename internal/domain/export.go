package domain

import (
	"fmt"
	"sort"
)

// ChannelEmail is the only channel type eligible for audience import.
const ChannelEmail = "EMAIL"

// ExportEvent is the payload Pinpoint delivers to the custom channel: one
// campaign activation with its exported endpoints. The same shape is used for
// the fragments produced by the chunker, so a fragment round-trips through
// the queue unchanged.
type ExportEvent struct {
	ApplicationID string              `json:"ApplicationId"`
	CampaignID    string              `json:"CampaignId"`
	Endpoints     map[string]Endpoint `json:"Endpoints"`
}

// Endpoint is a single Pinpoint endpoint snapshot. CreationDate and CohortId
// are producer-internal fields that PutEvents rejects on round-trip; they are
// carried here so the worker can strip them explicitly.
type Endpoint struct {
	ChannelType  string              `json:"ChannelType"`
	Address      string              `json:"Address"`
	Attributes   map[string][]string `json:"Attributes,omitempty"`
	User         *EndpointUser       `json:"User,omitempty"`
	CreationDate string              `json:"CreationDate,omitempty"`
	CohortID     string              `json:"CohortId,omitempty"`
}

// EndpointUser holds the user-level attributes of an endpoint. Phone and
// Mobile_Advertiser_Id entries in UserAttributes become optional columns of
// the import schema.
type EndpointUser struct {
	UserID         string              `json:"UserId,omitempty"`
	UserAttributes map[string][]string `json:"UserAttributes,omitempty"`
}

// Validate checks the identity fields a fragment must carry. A fragment
// failing this check is malformed input and must not be retried.
func (e *ExportEvent) Validate() error {
	if e.ApplicationID == "" {
		return fmt.Errorf("export event is missing ApplicationId")
	}
	if e.CampaignID == "" {
		return fmt.Errorf("export event is missing CampaignId")
	}
	return nil
}

// GroupID returns the ordering-group key shared by all fragments of one
// campaign.
func (e *ExportEvent) GroupID() string {
	return fmt.Sprintf("%s-%s", e.ApplicationID, e.CampaignID)
}

// SortedEndpointIDs returns the endpoint identifiers in lexical order. Map
// iteration order is not stable in Go, so every component that walks the
// endpoint set uses this to stay deterministic across replays.
func (e *ExportEvent) SortedEndpointIDs() []string {
	ids := make([]string, 0, len(e.Endpoints))
	for id := range e.Endpoints {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Subset returns a copy of the event sharing every field except Endpoints,
// which is restricted to the given identifiers.
func (e *ExportEvent) Subset(ids []string) *ExportEvent {
	endpoints := make(map[string]Endpoint, len(ids))
	for _, id := range ids {
		endpoints[id] = e.Endpoints[id]
	}
	return &ExportEvent{
		ApplicationID: e.ApplicationID,
		CampaignID:    e.CampaignID,
		Endpoints:     endpoints,
	}
}

// StripInternal returns a copy of the endpoint without the producer-internal
// fields that the event-ingestion API rejects.
func (ep Endpoint) StripInternal() Endpoint {
	ep.CreationDate = ""
	ep.CohortID = ""
	return ep
}
