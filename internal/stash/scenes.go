package stash

import (
	"context"
	"fmt"
)

const sceneFields = `id title files { path duration frame_rate } tags { id name }`

const markerFields = `id title seconds end_seconds primary_tag { id name } tags { id name } scene { id }`

// FindScene returns the scene with the given id, or nil when Stash has none.
func (c *Client) FindScene(ctx context.Context, id string) (*Scene, error) {
	var data struct {
		FindScene *Scene `json:"findScene"`
	}
	query := `query FindScene($id: ID!) { findScene(id: $id) { ` + sceneFields + ` } }`
	if err := c.do(ctx, "FindScene", query, map[string]any{"id": id}, &data); err != nil {
		return nil, err
	}
	return data.FindScene, nil
}

// FindSceneMarkers returns every marker of a scene, shot boundaries included.
func (c *Client) FindSceneMarkers(ctx context.Context, sceneID string) ([]Marker, error) {
	var data struct {
		FindScene *struct {
			SceneMarkers []Marker `json:"scene_markers"`
		} `json:"findScene"`
	}
	query := `query FindSceneMarkers($id: ID!) { findScene(id: $id) { scene_markers { ` + markerFields + ` } } }`
	if err := c.do(ctx, "FindSceneMarkers", query, map[string]any{"id": sceneID}, &data); err != nil {
		return nil, err
	}
	if data.FindScene == nil {
		return nil, fmt.Errorf("scene %s not found", sceneID)
	}
	markers := data.FindScene.SceneMarkers
	for i := range markers {
		if markers[i].Scene.ID == "" {
			markers[i].Scene.ID = sceneID
		}
	}
	return markers, nil
}

// AddSceneTag adds tagID to the scene's tags, keeping the existing ones.
func (c *Client) AddSceneTag(ctx context.Context, sceneID, tagID string) error {
	query := `mutation AddSceneTag($input: BulkSceneUpdateInput!) { bulkSceneUpdate(input: $input) { id } }`
	vars := map[string]any{
		"input": map[string]any{
			"ids":     []string{sceneID},
			"tag_ids": map[string]any{"ids": []string{tagID}, "mode": "ADD"},
		},
	}
	return c.do(ctx, "AddSceneTag", query, vars, nil)
}
