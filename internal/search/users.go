package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"

	"github.com/Skotchmaster/taskhub_auth/internal/models"
)

var ErrUnavailable = errors.New("search index unavailable")

// UserDoc is the indexed projection of a user. No credential material.
type UserDoc struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
}

func DocFromUser(u *models.User) UserDoc {
	return UserDoc{
		ID:         u.ID.String(),
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       string(u.Role),
		Department: u.Department,
		Position:   u.Position,
	}
}

func NewClient(ctx context.Context, url, user, password string) (*elasticsearch.Client, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("%w: %s: %s", ErrUnavailable, res.Status(), body)
	}
	return client, nil
}

type UserIndex struct {
	Client *elasticsearch.Client
	Index  string
}

func (x *UserIndex) IndexUser(ctx context.Context, u *models.User) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(DocFromUser(u)); err != nil {
		return fmt.Errorf("encode user doc: %w", err)
	}

	res, err := x.Client.Index(x.Index, &buf,
		x.Client.Index.WithContext(ctx),
		x.Client.Index.WithDocumentID(u.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("index user: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index user: %s", res.Status())
	}
	return nil
}

// DeleteUser treats a missing document as already removed.
func (x *UserIndex) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := x.Client.Delete(x.Index, id.String(), x.Client.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("delete user doc: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("delete user doc: %s", res.Status())
	}
	return nil
}

// SearchUsers returns matching user ids in relevance order.
func (x *UserIndex) SearchUsers(ctx context.Context, query string, from, size int) (int64, []uuid.UUID, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"username^3", "email^2", "first_name", "last_name", "department", "position"},
				"fuzziness": "AUTO",
			},
		},
		"_source": []string{"id"},
		"from":    from,
		"size":    size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("encode search body: %w", err)
	}

	res, err := x.Client.Search(
		x.Client.Search.WithContext(ctx),
		x.Client.Search.WithIndex(x.Index),
		x.Client.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		raw, _ := io.ReadAll(res.Body)
		return 0, nil, fmt.Errorf("search users: %s: %s", res.Status(), strings.TrimSpace(string(raw)))
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source UserDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("decode search response: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		id, err := uuid.Parse(hit.Source.ID)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return r.Hits.Total.Value, ids, nil
}
