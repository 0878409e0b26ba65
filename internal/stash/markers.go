package stash

import (
	"context"
	"fmt"
)

func (in MarkerInput) variables(withID bool) map[string]any {
	v := map[string]any{
		"scene_id":       in.SceneID,
		"title":          in.Title,
		"seconds":        in.Seconds,
		"end_seconds":    in.EndSeconds,
		"primary_tag_id": in.PrimaryTagID,
		"tag_ids":        nonNil(in.TagIDs),
	}
	if withID {
		v["id"] = in.ID
	}
	return v
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func (c *Client) CreateMarker(ctx context.Context, in MarkerInput) (*Marker, error) {
	var data struct {
		Created *Marker `json:"sceneMarkerCreate"`
	}
	query := `mutation CreateMarker($input: SceneMarkerCreateInput!) { sceneMarkerCreate(input: $input) { ` + markerFields + ` } }`
	if err := c.do(ctx, "CreateMarker", query, map[string]any{"input": in.variables(false)}, &data); err != nil {
		return nil, err
	}
	if data.Created == nil {
		return nil, fmt.Errorf("stash returned no marker for create")
	}
	c.logger.Info("stash marker created", "marker_id", data.Created.ID, "scene_id", in.SceneID)
	return data.Created, nil
}

// UpdateMarker replaces every writable field of marker in.ID.
func (c *Client) UpdateMarker(ctx context.Context, in MarkerInput) (*Marker, error) {
	if in.ID == "" {
		return nil, fmt.Errorf("marker id is required")
	}
	var data struct {
		Updated *Marker `json:"sceneMarkerUpdate"`
	}
	query := `mutation UpdateMarker($input: SceneMarkerUpdateInput!) { sceneMarkerUpdate(input: $input) { ` + markerFields + ` } }`
	if err := c.do(ctx, "UpdateMarker", query, map[string]any{"input": in.variables(true)}, &data); err != nil {
		return nil, err
	}
	if data.Updated == nil {
		return nil, fmt.Errorf("stash returned no marker for update of %s", in.ID)
	}
	return data.Updated, nil
}

func (c *Client) DestroyMarker(ctx context.Context, id string) error {
	var data struct {
		Destroyed bool `json:"sceneMarkerDestroy"`
	}
	query := `mutation DestroyMarker($id: ID!) { sceneMarkerDestroy(id: $id) }`
	if err := c.do(ctx, "DestroyMarker", query, map[string]any{"id": id}, &data); err != nil {
		return err
	}
	if !data.Destroyed {
		return fmt.Errorf("stash refused to delete marker %s", id)
	}
	c.logger.Info("stash marker deleted", "marker_id", id)
	return nil
}
