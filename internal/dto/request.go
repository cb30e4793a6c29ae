package dto

import "github.com/aws-samples/amazon-pinpoint-facebookads-channel/internal/domain"

// SubmitExportRequest carries one campaign export in the same shape the
// producer platform delivers to the splitter.
type SubmitExportRequest struct {
	ApplicationID string                     `json:"ApplicationId" binding:"required"`
	CampaignID    string                     `json:"CampaignId" binding:"required"`
	Endpoints     map[string]domain.Endpoint `json:"Endpoints" binding:"required"`
}

// ToDomain converts the request to the domain export event.
func (r *SubmitExportRequest) ToDomain() *domain.ExportEvent {
	return &domain.ExportEvent{
		ApplicationID: r.ApplicationID,
		CampaignID:    r.CampaignID,
		Endpoints:     r.Endpoints,
	}
}
