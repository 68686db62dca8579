package hubspot

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
)

type engagementItem struct {
	Engagement struct {
		Type      string `json:"type"`
		Timestamp int64  `json:"timestamp"`
	} `json:"engagement"`
	Metadata struct {
		Body string `json:"body"`
	} `json:"metadata"`
}

type engagementPage struct {
	Results []engagementItem `json:"results"`
	HasMore bool             `json:"hasMore"`
	Offset  int64            `json:"offset"`
}

func (c *httpClient) Engagements(ctx context.Context, dealID string) (*EngagementSummary, error) {
	query := url.Values{}
	query.Set("limit", "100")

	summary := &EngagementSummary{LastNote: "N/A"}
	var lastNoteTS int64 = -1

	for {
		var page engagementPage
		path := "/engagements/v1/engagements/associated/deal/" + dealID + "/paged"
		if err := c.doJSON(ctx, http.MethodGet, path, query, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Results {
			ts := item.Engagement.Timestamp
			if ts == 0 {
				continue
			}
			summary.Timestamps = append(summary.Timestamps, ts)

			if item.Engagement.Type == "NOTE" && item.Metadata.Body != "" && ts > lastNoteTS {
				summary.LastNote = StripHTML(item.Metadata.Body)
				lastNoteTS = ts
			}
		}

		if !page.HasMore {
			break
		}
		query.Set("offset", strconv.FormatInt(page.Offset, 10))
	}

	sort.Slice(summary.Timestamps, func(i, j int) bool {
		return summary.Timestamps[i] < summary.Timestamps[j]
	})
	return summary, nil
}
