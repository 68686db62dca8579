package hubspot

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

type associationPage struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
}

func (c *httpClient) AssociatedContacts(ctx context.Context, dealID string) ([]Contact, error) {
	query := url.Values{}
	query.Set("limit", "100")

	var assoc associationPage
	path := "/crm/v3/objects/deals/" + dealID + "/associations/contacts"
	if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &assoc); err != nil {
		return nil, err
	}

	contacts := make([]Contact, 0, len(assoc.Results))
	for _, r := range assoc.Results {
		detailQuery := url.Values{}
		detailQuery.Set("properties", "firstname,lastname,email,jobtitle")

		var detail struct {
			Properties Contact `json:"properties"`
		}
		if err := c.doJSON(ctx, http.MethodGet, "/crm/v3/objects/contacts/"+r.ID, detailQuery, nil, &detail); err != nil {
			// One unreadable contact should not sink the whole deal.
			zap.L().Warn("hubspot: fetch contact failed",
				zap.String("deal_id", dealID),
				zap.String("contact_id", r.ID),
				zap.Error(err),
			)
			continue
		}
		contacts = append(contacts, detail.Properties)
	}
	return contacts, nil
}
