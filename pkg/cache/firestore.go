package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-gatewaycache/pkg/snowflake"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds configuration for the Firestore-backed cache.
type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	// CollectionPrefix is prepended to the kind to name each collection.
	CollectionPrefix string `yaml:"collection_prefix"`
}

// NewFirestoreClient creates a Firestore client, using the credentials file when
// one is configured and Application Default Credentials otherwise.
func NewFirestoreClient(ctx context.Context, cfg *FirestoreConfig, logger zerolog.Logger) (*firestore.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info().Str("credentials_file", cfg.CredentialsFile).Msg("Using specified credentials file for Firestore client.")
	} else {
		logger.Info().Msg("Using Application Default Credentials (ADC) for Firestore client.")
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore.NewClient: %w", err)
	}
	return client, nil
}

// firestoreEntry is the stored document. Entities are kept as JSON because
// Firestore cannot represent uint64 identifiers natively.
type firestoreEntry struct {
	Data      []byte    `firestore:"data"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// FirestoreCache is a Cache backed by Firestore with one collection per kind.
// It suits low volume deployments; Redis is the high volume option.
type FirestoreCache[V any] struct {
	client *firestore.Client
	prefix string
	logger zerolog.Logger
}

// NewFirestoreCache creates a new FirestoreCache over an injected client.
func NewFirestoreCache[V any](
	cfg *FirestoreConfig,
	client *firestore.Client,
	logger zerolog.Logger,
) (*FirestoreCache[V], error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client cannot be nil")
	}

	logger.Info().Str("project_id", cfg.ProjectID).Str("collection_prefix", cfg.CollectionPrefix).Msg("FirestoreCache initialized.")

	return &FirestoreCache[V]{
		client: client,
		prefix: cfg.CollectionPrefix,
		logger: logger.With().Str("component", "FirestoreCache").Logger(),
	}, nil
}

func (s *FirestoreCache[V]) doc(key Key) *firestore.DocumentRef {
	return s.client.Collection(s.prefix + string(key.Kind)).Doc(key.ID.String())
}

// Get retrieves a single document. A NotFound status is reported as a miss.
func (s *FirestoreCache[V]) Get(ctx context.Context, kind Kind, id snowflake.ID) (V, bool, error) {
	var zero V
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return zero, false, fmt.Errorf("get %s: %w", key, err)
	}

	docSnap, err := s.doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return zero, false, nil
		}
		s.logger.Error().Err(err).Str("key", key.String()).Msg("Failed to get document from Firestore.")
		return zero, false, unavailable("firestore get", key, err)
	}

	var entry firestoreEntry
	if err := docSnap.DataTo(&entry); err != nil {
		s.logger.Error().Err(err).Str("key", key.String()).Msg("Failed to map Firestore document data.")
		return zero, false, corrupt("firestore decode", key, err)
	}
	var value V
	if err := json.Unmarshal(entry.Data, &value); err != nil {
		return zero, false, corrupt("firestore decode", key, err)
	}
	return value, true, nil
}

// Set writes the document, replacing any previous content.
func (s *FirestoreCache[V]) Set(ctx context.Context, kind Kind, id snowflake.ID, value V) error {
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if _, err := s.doc(key).Set(ctx, firestoreEntry{Data: data, UpdatedAt: time.Now().UTC()}); err != nil {
		s.logger.Error().Err(err).Str("key", key.String()).Msg("Failed to write document to Firestore.")
		return unavailable("firestore set", key, err)
	}
	return nil
}

// Delete removes the document. Firestore treats deleting a missing document as success.
func (s *FirestoreCache[V]) Delete(ctx context.Context, kind Kind, id snowflake.ID) error {
	key := Key{Kind: kind, ID: id}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	if _, err := s.doc(key).Delete(ctx); err != nil {
		s.logger.Error().Err(err).Str("key", key.String()).Msg("Failed to delete document from Firestore.")
		return unavailable("firestore delete", key, err)
	}
	return nil
}

// Close is a no-op as the Firestore client's lifecycle is managed externally.
func (s *FirestoreCache[V]) Close() error {
	return nil
}
