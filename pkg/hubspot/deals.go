package hubspot

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// DealTypeProperty is the CRM-internal name of the hot/warm/cold field. The
// awkward name is HubSpot's generated slug for a custom property and is part
// of the account's schema.
const DealTypeProperty = "deal_type__hot__warm___cold_"

type paging struct {
	Next struct {
		After string `json:"after"`
	} `json:"next"`
}

type dealPage struct {
	Results []Deal  `json:"results"`
	Paging  *paging `json:"paging"`
}

type searchPayload struct {
	FilterGroups []struct {
		Filters []Filter `json:"filters"`
	} `json:"filterGroups,omitempty"`
	Properties []string `json:"properties"`
	Limit      int      `json:"limit"`
	After      string   `json:"after,omitempty"`
}

func (c *httpClient) SearchDeals(ctx context.Context, req SearchRequest) ([]Deal, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	payload := searchPayload{
		Properties: req.Properties,
		Limit:      pageSize,
	}
	if len(req.Filters) > 0 {
		payload.FilterGroups = []struct {
			Filters []Filter `json:"filters"`
		}{{Filters: req.Filters}}
	}

	var all []Deal
	for {
		var page dealPage
		if err := c.doJSON(ctx, http.MethodPost, "/crm/v3/objects/deals/search", nil, payload, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)

		if page.Paging == nil || page.Paging.Next.After == "" {
			break
		}
		payload.After = page.Paging.Next.After
	}

	zap.L().Info("hubspot: deal search complete", zap.Int("deals", len(all)))
	return all, nil
}

func (c *httpClient) ListDeals(ctx context.Context, properties []string) ([]Deal, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(100))
	for _, p := range properties {
		query.Add("properties", p)
	}

	var all []Deal
	for {
		var page dealPage
		if err := c.doJSON(ctx, http.MethodGet, "/crm/v3/objects/deals", query, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Results...)

		if page.Paging == nil || page.Paging.Next.After == "" {
			break
		}
		query.Set("after", page.Paging.Next.After)
	}

	zap.L().Info("hubspot: deal listing complete", zap.Int("deals", len(all)))
	return all, nil
}

func (c *httpClient) DealTypeHistory(ctx context.Context, dealID string) ([]TypeChange, error) {
	query := url.Values{}
	query.Set("propertiesWithHistory", DealTypeProperty)

	var resp struct {
		PropertiesWithHistory map[string][]TypeChange `json:"propertiesWithHistory"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/crm/v3/objects/deals/"+dealID, query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.PropertiesWithHistory[DealTypeProperty], nil
}
