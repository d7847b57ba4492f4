package backend

import (
	"context"
	"net/http"

	"github.com/talentpipe/inboxsync/internal/model"
)

const templatesPath = "/whatsapp/templates"

// ListTemplates returns the stored message templates.
func (c *Client) ListTemplates(ctx context.Context) ([]model.Template, error) {
	var out list[model.Template]
	if err := c.do(ctx, http.MethodGet, templatesPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTemplate fetches one template.
func (c *Client) GetTemplate(ctx context.Context, id string) (model.Template, error) {
	var out model.Template
	err := c.do(ctx, http.MethodGet, templatesPath+"/"+pathEscape(id), nil, &out)
	return out, err
}

// CreateTemplate stores a new template.
func (c *Client) CreateTemplate(ctx context.Context, t model.Template) (model.Template, error) {
	var out model.Template
	err := c.do(ctx, http.MethodPost, templatesPath, t, &out)
	return out, err
}

// UpdateTemplate replaces a template.
func (c *Client) UpdateTemplate(ctx context.Context, t model.Template) (model.Template, error) {
	var out model.Template
	err := c.do(ctx, http.MethodPut, templatesPath+"/"+pathEscape(t.ID), t, &out)
	return out, err
}

// DeleteTemplate removes a template.
func (c *Client) DeleteTemplate(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, templatesPath+"/"+pathEscape(id), nil, nil)
}
