package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore backs the document store with Google Cloud Firestore.
// Documents live under a fixed root namespace (a collection/document pair,
// e.g. "leagues/default"), so the full path of a document with key
// "organization/registry" is "leagues/default/organization/registry".
type FirestoreStore struct {
	client *firestore.Client
	root   string
}

// NewFirestoreStore connects to Firestore. databaseID may be empty for the
// default database; credentialsFile may be empty to use ambient credentials.
func NewFirestoreStore(ctx context.Context, projectID, databaseID, root, credentialsFile string) (*FirestoreStore, error) {
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}
	if root == "" {
		root = "leagues/default"
	}
	if strings.Count(root, "/") != 1 {
		return nil, fmt.Errorf("store root %q must be a collection/document pair", root)
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &FirestoreStore{client: client, root: root}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func (s *FirestoreStore) doc(key string) *firestore.DocumentRef {
	return s.client.Doc(s.root + "/" + key)
}

func (s *FirestoreStore) Get(ctx context.Context, key string) (Snapshot, error) {
	snap, err := s.doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Snapshot{Key: key}, nil
		}
		return Snapshot{}, fmt.Errorf("reading document %s: %w", key, err)
	}
	return toSnapshot(key, snap)
}

func (s *FirestoreStore) Set(ctx context.Context, key string, value any) error {
	fields, err := toFields(value)
	if err != nil {
		return fmt.Errorf("encoding document %s: %w", key, err)
	}
	if _, err := s.doc(key).Set(ctx, fields); err != nil {
		return fmt.Errorf("writing document %s: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, key string) error {
	if _, err := s.doc(key).Delete(ctx); err != nil {
		return fmt.Errorf("deleting document %s: %w", key, err)
	}
	return nil
}

func (s *FirestoreStore) List(ctx context.Context, prefix string) ([]string, error) {
	coll := prefix
	docPrefix := ""
	if i := strings.Index(prefix, "/"); i >= 0 {
		coll, docPrefix = prefix[:i], prefix[i+1:]
	}

	iter := s.client.Collection(s.root + "/" + coll).Documents(ctx)
	defer iter.Stop()

	keys := make([]string, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}
		if strings.HasPrefix(snap.Ref.ID, docPrefix) {
			keys = append(keys, coll+"/"+snap.Ref.ID)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FirestoreStore) Watch(key string, onChange func(Snapshot), onError func(error)) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())
	iter := s.doc(key).Snapshots(ctx)

	go func() {
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if status.Code(err) == codes.Canceled || ctx.Err() != nil {
					return
				}
				onError(fmt.Errorf("watching document %s: %w", key, err))
				return
			}
			out, err := toSnapshot(key, snap)
			if err != nil {
				onError(err)
				continue
			}
			onChange(out)
		}
	}()

	return cancel, nil
}

// toFields converts an arbitrary value into the map shape Firestore stores,
// going through JSON so documents read back byte-compatible with the other
// backends.
func toFields(value any) (map[string]any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}
	return fields, nil
}

func toSnapshot(key string, snap *firestore.DocumentSnapshot) (Snapshot, error) {
	if !snap.Exists() {
		return Snapshot{Key: key}, nil
	}
	data, err := json.Marshal(snap.Data())
	if err != nil {
		return Snapshot{}, fmt.Errorf("decoding document %s: %w", key, err)
	}
	return Snapshot{Key: key, Exists: true, Data: data}, nil
}
