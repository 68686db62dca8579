package hubspot

import (
	"context"
	"net/http"
	"net/url"
)

type owner struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type ownerPage struct {
	Results []owner `json:"results"`
	Paging  *paging `json:"paging"`
}

func (c *httpClient) OwnerEmail(ctx context.Context, ownerID string) (string, error) {
	var o owner
	if err := c.doJSON(ctx, http.MethodGet, "/crm/v3/owners/"+ownerID, nil, nil, &o); err != nil {
		return "", err
	}
	return o.Email, nil
}

func (c *httpClient) OwnerEmails(ctx context.Context) (map[string]string, error) {
	query := url.Values{}
	query.Set("limit", "100")

	emails := make(map[string]string)
	for {
		var page ownerPage
		if err := c.doJSON(ctx, http.MethodGet, "/crm/v3/owners", query, nil, &page); err != nil {
			return nil, err
		}
		for _, o := range page.Results {
			emails[o.ID] = o.Email
		}
		if page.Paging == nil || page.Paging.Next.After == "" {
			break
		}
		query.Set("after", page.Paging.Next.After)
	}
	return emails, nil
}
