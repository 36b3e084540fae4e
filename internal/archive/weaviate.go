package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	weaviate "github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"
	filters "github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	gql "github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"

	"github.com/wayfarer-ai/wayfarer/internal/model"
)

const className = "ConversationTurn"

// turnNamespace derives stable Weaviate object IDs from deterministic turn IDs.
var turnNamespace = uuid.MustParse("8c9f1a52-7d06-49c1-9e35-c1b2a4f0d7e3")

// weavIndex is a native implementation of Index using the Weaviate Go client.
type weavIndex struct {
	client  *weaviate.Client
	baseURL string // host:port without scheme
}

// NewWeaviateIndex constructs an Index backed by Weaviate at baseURL.
// baseURL should be host:port (without scheme), e.g., "localhost:8081".
func NewWeaviateIndex(baseURL string) (Index, error) {
	cfg := weaviate.Config{Scheme: "http", Host: baseURL}
	cl, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &weavIndex{client: cl, baseURL: baseURL}, nil
}

// ObjectID maps a deterministic turn ID to the Weaviate object UUID.
func ObjectID(turnID string) string {
	return uuid.NewSHA1(turnNamespace, []byte(turnID)).String()
}

func (w *weavIndex) Insert(ctx context.Context, rec model.ArchivedTurn) error {
	props := map[string]interface{}{
		"turnId":       rec.TurnID,
		"userId":       rec.UserID,
		"role":         string(rec.Role),
		"content":      rec.Content,
		"creationTime": rec.CreationTime.UTC().Format(time.RFC3339),
	}
	_, err := w.client.Data().Creator().
		WithClassName(className).
		WithID(ObjectID(rec.TurnID)).
		WithProperties(props).
		WithVector(rec.Vector).
		Do(ctx)
	if err != nil {
		// A 422 on a deterministic ID means this turn was already
		// archived by a previous delivery of the same message.
		var wce *fault.WeaviateClientError
		if errors.As(err, &wce) && wce.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(wce.Error(), "already exists") {
			log.Debug().Str("turnId", rec.TurnID).Msg("turn already archived, skipping")
			return nil
		}
		return err
	}
	return nil
}

func (w *weavIndex) Query(ctx context.Context, userID string, vec []float32, k int) ([]model.ArchiveHit, error) {
	log.Debug().Str("userId", userID).Int("topK", k).Int("vectorLength", len(vec)).Msg("archive query starting")

	near := (&gql.NearVectorArgumentBuilder{}).WithVector(vec)
	where := filters.Where().WithPath([]string{"userId"}).WithOperator(filters.Equal).WithValueText(userID)

	req := w.client.GraphQL().Get().
		WithClassName(className).
		WithWhere(where).
		WithNearVector(near).
		WithLimit(k).
		WithFields(
			gql.Field{Name: "turnId"},
			gql.Field{Name: "userId"},
			gql.Field{Name: "role"},
			gql.Field{Name: "content"},
			gql.Field{Name: "creationTime"},
			gql.Field{Name: "_additional", Fields: []gql.Field{{Name: "distance"}}},
		)

	resp, err := req.Do(ctx)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("archive graphql query failed")
		return nil, err
	}
	if len(resp.Errors) > 0 {
		log.Error().Interface("errors", resp.Errors).Str("userId", userID).Msg("archive graphql errors")
		return nil, fmt.Errorf("weaviate graphql: %s", formatGraphQLErrors(resp.Errors))
	}

	getData, ok := resp.Data["Get"].(map[string]interface{})
	if !ok {
		return []model.ArchiveHit{}, nil
	}
	val := getData[className]
	if val == nil {
		return []model.ArchiveHit{}, nil
	}
	raw, ok := val.([]interface{})
	if !ok {
		log.Warn().Str("userId", userID).Interface("val", val).Msg("archive result is not an array")
		return []model.ArchiveHit{}, nil
	}

	out := parseHits(raw)
	log.Debug().Int("resultCount", len(out)).Str("userId", userID).Msg("archive query completed")
	return out, nil
}

// parseHits converts raw GraphQL result items to hits, skipping any item that
// is not the expected object shape.
func parseHits(raw []interface{}) []model.ArchiveHit {
	safeString := func(v interface{}) string {
		s, _ := v.(string)
		return s
	}
	out := make([]model.ArchiveHit, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			log.Warn().Interface("item", item).Msg("archive result item is not an object, skipping")
			continue
		}
		var distance float64
		if add, ok := m["_additional"].(map[string]interface{}); ok {
			switch v := add["distance"].(type) {
			case float64:
				distance = v
			case string:
				if f, err := strconv.ParseFloat(v, 64); err == nil {
					distance = f
				}
			}
		}
		ts, _ := time.Parse(time.RFC3339, safeString(m["creationTime"]))
		out = append(out, model.ArchiveHit{
			TurnID:       safeString(m["turnId"]),
			UserID:       safeString(m["userId"]),
			Role:         model.Role(safeString(m["role"])),
			Content:      safeString(m["content"]),
			CreationTime: ts,
			Distance:     distance,
		})
	}
	return out
}

// HealthPing implements health.HealthPinger for the Weaviate-backed archive.
// It calls GET http://<baseURL>/v1/meta and expects 200 OK.
func (w *weavIndex) HealthPing(ctx context.Context) error {
	if w == nil || w.baseURL == "" {
		return fmt.Errorf("weaviate baseURL missing")
	}
	url := w.baseURL
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/v1/meta", nil)
	if err != nil {
		return err
	}
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("weaviate status %d", resp.StatusCode)
	}
	return nil
}

// formatGraphQLErrors returns a compact string with messages extracted for logging.
func formatGraphQLErrors(errs interface{}) string {
	if b, err := json.Marshal(errs); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", errs)
}
