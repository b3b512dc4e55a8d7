// Copyright 2017 Pilosa Corp.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

// Package s3 implements datapub.Store on an S3 bucket. Directories are
// emulated with "/" delimited keys and empty "dir/" marker objects.
package s3

import (
	"bytes"
	"context"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

// StoreOption is a functional option type for s3.Store.
type StoreOption func(s *Store)

// OptStoreRegion is a StoreOption which sets the AWS region for a Store.
func OptStoreRegion(region string) StoreOption {
	return func(s *Store) {
		s.region = region
	}
}

// OptStorePrefix places every path under prefix within the bucket.
func OptStorePrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = strings.Trim(prefix, "/")
	}
}

// OptStoreClient uses client instead of creating one from a new session.
func OptStoreClient(client s3iface.S3API) StoreOption {
	return func(s *Store) {
		s.s3 = client
	}
}

// Store is a datapub.Store which keeps files as objects in one bucket.
type Store struct {
	bucket string
	prefix string
	region string

	s3 s3iface.S3API
}

// NewStore returns a Store for bucket, after checking that the bucket is
// reachable.
func NewStore(ctx context.Context, bucket string, opts ...StoreOption) (*Store, error) {
	s := &Store{
		bucket: bucket,
		region: "us-east-1",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bucket == "" {
		return nil, errors.New("bucket must be set")
	}
	if s.s3 == nil {
		sess, err := session.NewSession(&aws.Config{
			Region: aws.String(s.region)},
		)
		if err != nil {
			return nil, errors.Wrap(err, "getting new session")
		}
		s.s3 = s3.New(sess)
	}
	_, err := s.s3.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return nil, errors.Wrapf(err, "checking bucket %s", s.bucket)
	}
	return s, nil
}

// key maps an absolute store path to an object key.
func (s *Store) key(p string) string {
	return strings.TrimPrefix(path.Join("/", s.prefix, p), "/")
}

func (s *Store) dirPrefix(p string) string {
	k := s.key(p)
	if k == "" {
		return ""
	}
	return k + "/"
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

func (s *Store) objectExists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	_, err := s.s3.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return false, nil
	} else if err != nil {
		return false, errors.Wrapf(err, "heading %s", key)
	}
	return true, nil
}

func (s *Store) dirExists(ctx context.Context, p string) (bool, error) {
	prefix := s.dirPrefix(p)
	if prefix == "" {
		return true, nil
	}
	resp, err := s.s3.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int64(1),
	})
	if err != nil {
		return false, errors.Wrapf(err, "listing %s", prefix)
	}
	return len(resp.Contents) > 0, nil
}

// Status implements datapub.Store.
func (s *Store) Status(ctx context.Context, p string) (bool, error) {
	exists, err := s.objectExists(ctx, s.key(p))
	if err != nil || exists {
		return exists, err
	}
	return s.dirExists(ctx, p)
}

// Mkdirs implements datapub.Store by writing a marker object. Parents need
// no markers of their own.
func (s *Store) Mkdirs(ctx context.Context, p string) error {
	prefix := s.dirPrefix(p)
	if prefix == "" {
		return nil
	}
	_, err := s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(prefix),
		Body:   bytes.NewReader(nil),
	})
	return errors.Wrapf(err, "putting marker %s", prefix)
}

// Delete implements datapub.Store. A directory is deleted with everything
// under it.
func (s *Store) Delete(ctx context.Context, p string) error {
	key := s.key(p)
	exists, err := s.objectExists(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		return s.deleteKey(ctx, key)
	}
	prefix := s.dirPrefix(p)
	if prefix == "" {
		return errors.New("refusing to delete the store root")
	}
	var keys []string
	err = s.s3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, obj := range page.Contents {
			keys = append(keys, aws.StringValue(obj.Key))
		}
		return true
	})
	if err != nil {
		return errors.Wrapf(err, "listing %s", prefix)
	}
	if len(keys) == 0 {
		return errors.Wrap(datapub.ErrNotExist, p)
	}
	for _, k := range keys {
		if err := s.deleteKey(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) deleteKey(ctx context.Context, key string) error {
	_, err := s.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return errors.Wrapf(err, "deleting %s", key)
}

// Upload implements datapub.Store. A PutObject either replaces the object
// completely or leaves it untouched.
func (s *Store) Upload(ctx context.Context, localPath, remotePath string, overwrite bool) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrap(err, "reading local file")
	}
	key := s.key(remotePath)
	if !overwrite {
		exists, err := s.objectExists(ctx, key)
		if err != nil {
			return err
		}
		if exists {
			return errors.Errorf("%s exists", remotePath)
		}
	}
	_, err = s.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
	})
	return errors.Wrapf(err, "putting %s", key)
}

// List implements datapub.Store.
func (s *Store) List(ctx context.Context, p string) ([]string, error) {
	prefix := s.dirPrefix(p)
	names := make([]string, 0)
	found := false
	err := s.s3.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}, func(page *s3.ListObjectsV2Output, last bool) bool {
		for _, obj := range page.Contents {
			found = true
			name := strings.TrimPrefix(aws.StringValue(obj.Key), prefix)
			if name != "" {
				names = append(names, name)
			}
		}
		for _, cp := range page.CommonPrefixes {
			found = true
			names = append(names, strings.TrimSuffix(strings.TrimPrefix(aws.StringValue(cp.Prefix), prefix), "/"))
		}
		return true
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", prefix)
	}
	if !found && prefix != "" {
		return nil, errors.Wrap(datapub.ErrNotExist, p)
	}
	sort.Strings(names)
	return names, nil
}
