// internal/encounter/archive.go

package encounter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"avoidance-core/internal/minio"
)

// Archive writes each record as a JSON object under
// encounters/<vehicle>/<yyyy-mm-dd>/<id>.json.
type Archive struct {
	objects minio.ObjectStore
	bucket  string
}

func NewArchive(objects minio.ObjectStore, bucket string) *Archive {
	return &Archive{objects: objects, bucket: bucket}
}

func objectKey(r Record) string {
	return path.Join("encounters", r.VehicleID, r.EndedAt.Format("2006-01-02"), r.ID+".json")
}

func (a *Archive) Record(ctx context.Context, r Record) error {
	if err := r.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal encounter: %w", err)
	}
	if err := a.objects.PutObject(ctx, a.bucket, objectKey(r), bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("archive encounter %s: %w", r.ID, err)
	}
	return nil
}

// List returns the archived records of a vehicle, newest first as the
// store orders them.
func (a *Archive) List(ctx context.Context, vehicle string) ([]Record, error) {
	objs, err := a.objects.ListObjects(ctx, a.bucket, path.Join("encounters", vehicle)+"/")
	if err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	out := make([]Record, 0, len(objs))
	for _, o := range objs {
		data, err := a.objects.GetObject(ctx, a.bucket, o.Key)
		if err != nil {
			return nil, fmt.Errorf("read encounter %s: %w", o.Key, err)
		}
		var r Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decode encounter %s: %w", o.Key, err)
		}
		out = append(out, r)
	}
	return out, nil
}
