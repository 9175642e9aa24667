package operations

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mongodb/amboy"
	"github.com/mongodb/amboy/job"
	"github.com/mongodb/amboy/queue"
	"github.com/mongodb/amboy/registry"
	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/pkg/errors"

	"github.com/nimbuscloud/nimbus-go-sdk/storage"
)

const (
	uploadObjectJobName   = "upload-object"
	downloadObjectJobName = "download-object"
)

func init() {
	registry.AddJobType(uploadObjectJobName, func() amboy.Job { return makeUploadObjectJob() })
	registry.AddJobType(downloadObjectJobName, func() amboy.Job { return makeDownloadObjectJob() })
}

type uploadObjectJob struct {
	Bucket   string `bson:"bucket" json:"bucket" yaml:"bucket"`
	Key      string `bson:"key" json:"key" yaml:"key"`
	Path     string `bson:"path" json:"path" yaml:"path"`
	job.Base `bson:"metadata" json:"metadata" yaml:"metadata"`

	client *storage.Client
}

func makeUploadObjectJob() *uploadObjectJob {
	return &uploadObjectJob{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    uploadObjectJobName,
				Version: 0,
			},
		},
	}
}

func newUploadObjectJob(client *storage.Client, bucket, key, path string) amboy.Job {
	j := makeUploadObjectJob()
	j.client = client
	j.Bucket = bucket
	j.Key = key
	j.Path = path
	j.SetID(fmt.Sprintf("%s.%s.%s", uploadObjectJobName, bucket, key))
	return j
}

func (j *uploadObjectJob) Run(ctx context.Context) {
	defer j.MarkComplete()

	f, err := os.Open(j.Path)
	if err != nil {
		j.AddError(errors.Wrapf(err, "opening '%s'", j.Path))
		return
	}
	defer f.Close()

	_, err = j.client.UploadObject(ctx, j.Bucket, j.Key, f, &storage.UploadObjectOptions{
		ComputeCRC64: true,
	})
	j.AddError(err)

	grip.InfoWhen(err == nil, message.Fields{
		"message": "uploaded",
		"path":    j.Path,
		"target":  remoteScheme + j.Bucket + "/" + j.Key,
	})
}

type downloadObjectJob struct {
	Bucket   string `bson:"bucket" json:"bucket" yaml:"bucket"`
	Key      string `bson:"key" json:"key" yaml:"key"`
	Path     string `bson:"path" json:"path" yaml:"path"`
	job.Base `bson:"metadata" json:"metadata" yaml:"metadata"`

	client *storage.Client
}

func makeDownloadObjectJob() *downloadObjectJob {
	return &downloadObjectJob{
		Base: job.Base{
			JobType: amboy.JobType{
				Name:    downloadObjectJobName,
				Version: 0,
			},
		},
	}
}

func newDownloadObjectJob(client *storage.Client, bucket, key, path string) amboy.Job {
	j := makeDownloadObjectJob()
	j.client = client
	j.Bucket = bucket
	j.Key = key
	j.Path = path
	j.SetID(fmt.Sprintf("%s.%s.%s", downloadObjectJobName, bucket, key))
	return j
}

func (j *downloadObjectJob) Run(ctx context.Context) {
	defer j.MarkComplete()

	resp, err := j.client.DownloadObject(ctx, j.Bucket, j.Key, &storage.DownloadObjectOptions{
		ValidateChecksum: true,
		MaxRetryRequests: 3,
	})
	if err != nil {
		j.AddError(err)
		return
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(j.Path), 0755); err != nil {
		j.AddError(errors.Wrapf(err, "creating directory for '%s'", j.Path))
		return
	}
	f, err := os.Create(j.Path)
	if err != nil {
		j.AddError(errors.Wrapf(err, "creating '%s'", j.Path))
		return
	}

	_, err = io.Copy(f, resp.Body)
	j.AddError(errors.Wrapf(err, "writing '%s'", j.Path))
	j.AddError(f.Close())

	grip.InfoWhen(!j.HasErrors(), message.Fields{
		"message": "downloaded",
		"source":  remoteScheme + j.Bucket + "/" + j.Key,
		"path":    j.Path,
	})
}

// runTransfers executes the jobs on a bounded local queue and
// aggregates their errors.
func runTransfers(ctx context.Context, workers int, jobs []amboy.Job) error {
	if workers < 1 {
		workers = 1
	}
	q := queue.NewLocalLimitedSize(workers, len(jobs)+1)
	if err := q.Start(ctx); err != nil {
		return errors.Wrap(err, "starting transfer queue")
	}
	defer q.Runner().Close(ctx)

	catcher := grip.NewBasicCatcher()
	for _, j := range jobs {
		catcher.Add(q.Put(ctx, j))
	}
	if catcher.HasErrors() {
		return catcher.Resolve()
	}

	amboy.WaitInterval(ctx, q, 10*time.Millisecond)

	for result := range q.Results(ctx) {
		catcher.Add(result.Error())
	}
	return catcher.Resolve()
}
