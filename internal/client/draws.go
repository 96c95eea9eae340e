package client

import "context"

// Typed helpers over the storefront's collections. The read helpers swallow
// errors into empty results: the listing pages render an empty-state panel
// on connection failure instead of propagating.

const (
	drawsCollection       = "draws"
	productsCollection    = "products"
	submissionsCollection = "submissions"
	superusersCollection  = "_superusers"
)

type DrawInput struct {
	Title       string
	Description string
	ImageURL    string
	StartDate   string
	EndDate     string
	Status      string
	EntryFee    float64
}

// ActiveDraws lists the draws shown on the public storefront.
func (c *Client) ActiveDraws(ctx context.Context) []map[string]any {
	records, err := c.GetFullList(ctx, drawsCollection, `status = "active"`, "-created", "")
	if err != nil {
		return nil
	}
	return records
}

// AllDraws lists every draw for the admin dashboard, newest first.
func (c *Client) AllDraws(ctx context.Context) []map[string]any {
	records, err := c.GetFullList(ctx, drawsCollection, "", "-created", "")
	if err != nil {
		return nil
	}
	return records
}

func (c *Client) Draw(ctx context.Context, id string) map[string]any {
	record, err := c.GetOne(ctx, drawsCollection, id)
	if err != nil {
		return nil
	}
	return record
}

// CreateDraw creates a draw, defaulting status to draft and entry fee to 0.
func (c *Client) CreateDraw(ctx context.Context, in DrawInput) (map[string]any, error) {
	status := in.Status
	if status == "" {
		status = "draft"
	}
	return c.Create(ctx, drawsCollection, map[string]any{
		"title":       in.Title,
		"description": in.Description,
		"image_url":   in.ImageURL,
		"start_date":  in.StartDate,
		"end_date":    in.EndDate,
		"status":      status,
		"entry_fee":   in.EntryFee,
	})
}

func (c *Client) UpdateDraw(ctx context.Context, id string, data map[string]any) (map[string]any, error) {
	return c.Update(ctx, drawsCollection, id, data)
}

func (c *Client) DeleteDraw(ctx context.Context, id string) error {
	return c.Delete(ctx, drawsCollection, id)
}

// ProductsByDraw lists the prizes attached to one draw.
func (c *Client) ProductsByDraw(ctx context.Context, drawID string) []map[string]any {
	records, err := c.GetFullList(ctx, productsCollection, `draw_id = "`+drawID+`"`, "-created", "")
	if err != nil {
		return nil
	}
	return records
}

func (c *Client) CreateProduct(ctx context.Context, drawID, name, description, imageURL string) (map[string]any, error) {
	return c.Create(ctx, productsCollection, map[string]any{
		"draw_id":     drawID,
		"name":        name,
		"description": description,
		"image_url":   imageURL,
	})
}

func (c *Client) UpdateProduct(ctx context.Context, id string, data map[string]any) (map[string]any, error) {
	return c.Update(ctx, productsCollection, id, data)
}

func (c *Client) DeleteProduct(ctx context.Context, id string) error {
	return c.Delete(ctx, productsCollection, id)
}

type SubmissionInput struct {
	DrawID    string
	FirstName string
	LastName  string
	Phone     string
}

// SubmissionsByDraw lists one draw's entries for the admin dashboard.
func (c *Client) SubmissionsByDraw(ctx context.Context, drawID string) []map[string]any {
	records, err := c.GetFullList(ctx, submissionsCollection, `draw_id = "`+drawID+`"`, "-created", "")
	if err != nil {
		return nil
	}
	return records
}

// AllSubmissions lists every entry with its draw expanded.
func (c *Client) AllSubmissions(ctx context.Context) []map[string]any {
	records, err := c.GetFullList(ctx, submissionsCollection, "", "-created", "draw_id")
	if err != nil {
		return nil
	}
	return records
}

// CreateSubmission records a user's entry; new entries always start pending.
func (c *Client) CreateSubmission(ctx context.Context, in SubmissionInput) (map[string]any, error) {
	return c.Create(ctx, submissionsCollection, map[string]any{
		"draw_id":       in.DrawID,
		"user_name":     in.FirstName,
		"user_lastname": in.LastName,
		"phone":         in.Phone,
		"status":        "pending",
	})
}

// UpdateSubmissionStatus moves an entry through pending/confirmed/winner.
// Winner selection is a manual curation step done by an administrator; there
// is no draw algorithm.
func (c *Client) UpdateSubmissionStatus(ctx context.Context, id, status string) (map[string]any, error) {
	return c.Update(ctx, submissionsCollection, id, map[string]any{"status": status})
}

// AdminLogin authenticates an administrator against the superusers
// collection.
func (c *Client) AdminLogin(ctx context.Context, email, password string) (map[string]any, error) {
	return c.AuthWithPassword(ctx, superusersCollection, email, password)
}

// AdminLogout clears the session.
func (c *Client) AdminLogout(ctx context.Context) error {
	return c.ClearAuth(ctx)
}

// IsAdminAuthenticated reports whether the cached session carries a valid
// admin. The cache is short-lived and potentially stale; the proxy re-checks
// the authoritative cookie on every privileged call regardless.
func (c *Client) IsAdminAuthenticated(ctx context.Context) bool {
	session := c.AuthStore(ctx)
	return session.IsValid && session.Model != nil
}
