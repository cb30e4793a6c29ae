package worker

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"
)

// Import schema columns, in the fixed order they appear when present.
const (
	ColumnEmail = "EMAIL_SHA256"
	ColumnPhone = "PHONE_SHA256"
	ColumnMADID = "MADID_SHA256"
)

// User attribute keys carrying the optional identity values.
const (
	attrPhone = "Phone"
	attrMADID = "Mobile_Advertiser_Id"
)

// Matrix is the shared-schema attribute matrix for one fragment. Rows follow
// EndpointIDs one-to-one, so outcome events can be tied back to recipients.
type Matrix struct {
	Schema      []string
	Rows        [][]string
	EndpointIDs []string
}

// BuildMatrix filters the fragment to EMAIL endpoints and derives one hashed
// attribute row per retained endpoint. An optional column joins the schema
// only when at least one retained endpoint carries that attribute; endpoints
// lacking it omit the entry rather than sending a placeholder, because the
// ingestion API rejects batches whose rows disagree with the schema.
func BuildMatrix(event *domain.ExportEvent) *Matrix {
	ids := event.SortedEndpointIDs()

	hasPhone := false
	hasMADID := false
	retained := make([]string, 0, len(ids))
	for _, id := range ids {
		endpoint := event.Endpoints[id]
		if endpoint.ChannelType != domain.ChannelEmail {
			continue
		}
		retained = append(retained, id)
		if userAttribute(endpoint, attrPhone) != "" {
			hasPhone = true
		}
		if userAttribute(endpoint, attrMADID) != "" {
			hasMADID = true
		}
	}

	schema := []string{ColumnEmail}
	if hasPhone {
		schema = append(schema, ColumnPhone)
	}
	if hasMADID {
		schema = append(schema, ColumnMADID)
	}

	rows := make([][]string, 0, len(retained))
	for _, id := range retained {
		endpoint := event.Endpoints[id]
		row := []string{hashValue(endpoint.Address)}
		if phone := userAttribute(endpoint, attrPhone); phone != "" {
			row = append(row, hashValue(phone))
		}
		if madid := userAttribute(endpoint, attrMADID); madid != "" {
			row = append(row, hashValue(madid))
		}
		rows = append(rows, row)
	}

	return &Matrix{
		Schema:      schema,
		Rows:        rows,
		EndpointIDs: retained,
	}
}

func userAttribute(endpoint domain.Endpoint, key string) string {
	if endpoint.User == nil {
		return ""
	}
	values := endpoint.User.UserAttributes[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func hashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
