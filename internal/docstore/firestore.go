package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
	Logger          *slog.Logger
}

// Firestore adapts a Cloud Firestore database. Each subscription is a realtime listener running
// on its own goroutine.
type Firestore struct {
	app    *firebase.App
	client *firestore.Client
	log    *slog.Logger
}

func OpenFirestore(ctx context.Context, cfg FirestoreConfig) (*Firestore, error) {
	credentials := strings.TrimSpace(cfg.CredentialsFile)
	if credentials == "" {
		credentials = strings.TrimSpace(os.Getenv("FIREBASE_CREDENTIALS_PATH"))
	}
	var opts []option.ClientOption
	if credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}
	var fbCfg *firebase.Config
	if strings.TrimSpace(cfg.ProjectID) != "" {
		fbCfg = &firebase.Config{ProjectID: strings.TrimSpace(cfg.ProjectID)}
	}
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Firestore{app: app, client: client, log: log}, nil
}

// App exposes the firebase app so other services (auth) share its credentials.
func (f *Firestore) App() *firebase.App { return f.app }

// toFirestore swaps the ServerTimestamp sentinel for the SDK's own.
func toFirestore(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if IsServerTimestamp(v) {
			out[k] = firestore.ServerTimestamp
			continue
		}
		out[k] = v
	}
	return out
}

func wrapNotFound(err error, collection, id string) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return err
}

func (f *Firestore) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	ref, _, err := f.client.Collection(strings.Trim(collection, "/")).Add(ctx, toFirestore(fields))
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (f *Firestore) Set(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	_, err := f.client.Collection(strings.Trim(collection, "/")).Doc(id).Set(ctx, toFirestore(fields))
	return err
}

func (f *Firestore) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	ups := make([]firestore.Update, 0, len(patch))
	for k, v := range toFirestore(patch) {
		ups = append(ups, firestore.Update{Path: k, Value: v})
	}
	_, err := f.client.Collection(strings.Trim(collection, "/")).Doc(id).Update(ctx, ups)
	return wrapNotFound(err, collection, id)
}

func (f *Firestore) Delete(ctx context.Context, collection, id string) error {
	_, err := f.client.Collection(strings.Trim(collection, "/")).Doc(id).Delete(ctx)
	return err
}

// relPath strips the "projects/{p}/databases/{d}/documents/" prefix from a full resource name.
func relPath(name string) string {
	if _, rest, ok := strings.Cut(name, "/documents/"); ok {
		return rest
	}
	return name
}

func (f *Firestore) Subscribe(q Query, onSnapshot SnapshotFunc, onError ErrorFunc) (Unsubscribe, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var fq firestore.Query
	if q.Group != "" {
		fq = f.client.CollectionGroup(q.Group).Query
	} else {
		fq = f.client.Collection(strings.Trim(q.Collection, "/")).Query
	}
	fq = fq.OrderBy("createdAt", firestore.Desc)

	ctx, cancel := context.WithCancel(context.Background())
	it := fq.Snapshots(ctx)
	go func() {
		defer it.Stop()
		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, iterator.Done) || status.Code(err) == codes.Canceled {
					return
				}
				f.log.Warn("firestore listener failed", "query", q.String(), "err", err)
				if onError != nil {
					onError(err)
				}
				// A failed snapshot iterator does not recover.
				return
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				if ctx.Err() == nil && onError != nil {
					onError(err)
				}
				continue
			}
			out := make([]Doc, 0, len(docs))
			for _, d := range docs {
				path := relPath(d.Ref.Path)
				if q.Group != "" && !strings.HasPrefix(path, q.Prefix) {
					continue
				}
				out = append(out, Doc{ID: d.Ref.ID, Path: path, Data: d.Data()})
			}
			if ctx.Err() != nil {
				return
			}
			if onSnapshot != nil {
				onSnapshot(out)
			}
		}
	}()
	// Unsubscribe may run on the listener goroutine itself, so it only cancels.
	return func() { cancel() }, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}
