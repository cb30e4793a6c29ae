package domain

// ProvisioningRecord links a Pinpoint campaign to the Facebook resource graph
// created for it, plus the batch-import cursor. Created exactly once per
// campaign; the session id never changes afterwards.
type ProvisioningRecord struct {
	ApplicationID      string `dynamodbav:"applicationId"`
	CampaignID         string `dynamodbav:"campaignId"`
	FacebookAudienceID string `dynamodbav:"fbAudience"`
	FacebookCampaignID string `dynamodbav:"fbCampaign"`
	FacebookAdSetID    string `dynamodbav:"fbAdSet"`
	FacebookAdID       string `dynamodbav:"fbAd"`
	SessionID          int64  `dynamodbav:"sessionId"`
	SequenceID         int64  `dynamodbav:"sequenceId"`
}
