package stash

import "context"

// AllTags returns every tag with its direct parents.
func (c *Client) AllTags(ctx context.Context) ([]Tag, error) {
	var data struct {
		FindTags struct {
			Count int   `json:"count"`
			Tags  []Tag `json:"tags"`
		} `json:"findTags"`
	}
	query := `query AllTags { findTags(filter: { per_page: -1 }) { count tags { id name parents { id name } } } }`
	if err := c.do(ctx, "AllTags", query, nil, &data); err != nil {
		return nil, err
	}
	return data.FindTags.Tags, nil
}
