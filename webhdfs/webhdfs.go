// Package webhdfs implements datapub.Store over the WebHDFS REST API.
package webhdfs

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/pilosa/datapub"
	"github.com/pkg/errors"
)

// copyingSuffix marks a file which is still being written, as "hdfs dfs -put"
// does.
const copyingSuffix = "._COPYING_"

// StoreOption is a functional option type for webhdfs.Store.
type StoreOption func(s *Store)

// OptStoreUser sets the user.name every request is made as.
func OptStoreUser(user string) StoreOption {
	return func(s *Store) {
		s.user = user
	}
}

// OptStoreTLS sets the TLS configuration for https namenodes and datanodes.
func OptStoreTLS(cfg *tls.Config) StoreOption {
	return func(s *Store) {
		s.tls = cfg
	}
}

// OptStoreTimeout bounds each HTTP request.
func OptStoreTimeout(d time.Duration) StoreOption {
	return func(s *Store) {
		s.timeout = d
	}
}

// OptStoreLogger sets the logger.
func OptStoreLogger(l datapub.Logger) StoreOption {
	return func(s *Store) {
		s.log = l
	}
}

// Store is a datapub.Store backed by a WebHDFS namenode.
type Store struct {
	addr    string
	user    string
	tls     *tls.Config
	timeout time.Duration
	log     datapub.Logger

	client *resty.Client
}

// RemoteException is the error body WebHDFS returns on failure.
type RemoteException struct {
	Exception     string `json:"exception"`
	JavaClassName string `json:"javaClassName"`
	Message       string `json:"message"`
}

func (e *RemoteException) Error() string {
	return e.Exception + ": " + e.Message
}

type remoteError struct {
	RemoteException *RemoteException `json:"RemoteException"`
}

type booleanResult struct {
	Boolean bool `json:"boolean"`
}

// FileStatus is one entry of a LISTSTATUS or GETFILESTATUS response.
type FileStatus struct {
	PathSuffix       string `json:"pathSuffix"`
	Type             string `json:"type"`
	Length           int64  `json:"length"`
	Owner            string `json:"owner"`
	Group            string `json:"group"`
	Permission       string `json:"permission"`
	ModificationTime int64  `json:"modificationTime"`
	Replication      int    `json:"replication"`
}

type fileStatusResult struct {
	FileStatus FileStatus `json:"FileStatus"`
}

type listStatusResult struct {
	FileStatuses struct {
		FileStatus []FileStatus `json:"FileStatus"`
	} `json:"FileStatuses"`
}

// Dial returns a Store for the namenode at addr (e.g.
// http://namenode:9870), after checking that the namenode answers.
func Dial(ctx context.Context, addr string, opts ...StoreOption) (*Store, error) {
	s := &Store{
		addr:    strings.TrimSuffix(addr, "/"),
		timeout: time.Minute,
		log:     datapub.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := url.Parse(s.addr); err != nil {
		return nil, errors.Wrap(err, "parsing namenode address")
	}
	s.client = resty.New()
	s.client.JSONMarshal = json.Marshal
	s.client.JSONUnmarshal = json.Unmarshal
	s.client.
		SetBaseURL(s.addr+"/webhdfs/v1").
		SetTimeout(s.timeout).
		SetError(&remoteError{}).
		// CREATE answers with a redirect to a datanode which must be
		// followed by hand so the file body is only sent once.
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}))
	if s.tls != nil {
		s.client.SetTLSClientConfig(s.tls)
	}
	if _, err := s.status(ctx, "/"); err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", s.addr)
	}
	s.log.Printf("Connected to HDFS at %s.", s.addr)
	return s, nil
}

func (s *Store) request(ctx context.Context, op string) *resty.Request {
	r := s.client.R().SetContext(ctx).SetQueryParam("op", op)
	if s.user != "" {
		r.SetQueryParam("user.name", s.user)
	}
	return r
}

// escape percent-encodes each segment of an absolute path.
func escape(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Path: p}).EscapedPath()
}

// check converts an unsuccessful response into an error.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsSuccess() {
		return nil
	}
	var rerr error = errors.Errorf("unexpected status %s", resp.Status())
	if re, ok := resp.Error().(*remoteError); ok && re.RemoteException != nil {
		rerr = re.RemoteException
	}
	if resp.StatusCode() == http.StatusNotFound {
		return errors.Wrap(datapub.ErrNotExist, rerr.Error())
	}
	return rerr
}

func (s *Store) status(ctx context.Context, p string) (*FileStatus, error) {
	res := &fileStatusResult{}
	err := check(s.request(ctx, "GETFILESTATUS").SetResult(res).Get(escape(p)))
	if err != nil {
		return nil, err
	}
	return &res.FileStatus, nil
}

// Status implements datapub.Store.
func (s *Store) Status(ctx context.Context, p string) (bool, error) {
	_, err := s.status(ctx, p)
	if errors.Cause(err) == datapub.ErrNotExist {
		return false, nil
	} else if err != nil {
		return false, errors.Wrapf(err, "getting status of %s", p)
	}
	return true, nil
}

// Mkdirs implements datapub.Store.
func (s *Store) Mkdirs(ctx context.Context, p string) error {
	res := &booleanResult{}
	err := check(s.request(ctx, "MKDIRS").SetQueryParam("permission", "755").SetResult(res).Put(escape(p)))
	if err != nil {
		return errors.Wrapf(err, "making directory %s", p)
	}
	if !res.Boolean {
		return errors.Errorf("namenode refused to make directory %s", p)
	}
	return nil
}

// Delete implements datapub.Store. Directories are deleted recursively.
func (s *Store) Delete(ctx context.Context, p string) error {
	return s.delete(ctx, p, true)
}

func (s *Store) delete(ctx context.Context, p string, recursive bool) error {
	res := &booleanResult{}
	err := check(s.request(ctx, "DELETE").
		SetQueryParam("recursive", fmt.Sprint(recursive)).
		SetResult(res).
		Delete(escape(p)))
	if err != nil {
		return errors.Wrapf(err, "deleting %s", p)
	}
	if !res.Boolean {
		return errors.Wrap(datapub.ErrNotExist, p)
	}
	return nil
}

// Upload implements datapub.Store. The content is written to a temporary
// name beside remotePath and renamed into place once complete.
func (s *Store) Upload(ctx context.Context, localPath, remotePath string, overwrite bool) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrap(err, "reading local file")
	}
	if !overwrite {
		exists, err := s.Status(ctx, remotePath)
		if err != nil {
			return err
		}
		if exists {
			return errors.Errorf("%s exists", remotePath)
		}
	}
	tmp := remotePath + copyingSuffix
	if err := s.create(ctx, tmp, content); err != nil {
		return errors.Wrapf(err, "writing %s", tmp)
	}
	if overwrite {
		err := s.delete(ctx, remotePath, false)
		if err != nil && errors.Cause(err) != datapub.ErrNotExist {
			s.cleanup(ctx, tmp)
			return errors.Wrap(err, "replacing existing file")
		}
	}
	if err := s.rename(ctx, tmp, remotePath); err != nil {
		s.cleanup(ctx, tmp)
		return err
	}
	return nil
}

// create runs the two step CREATE: the namenode redirects to a datanode,
// which receives the content.
func (s *Store) create(ctx context.Context, p string, content []byte) error {
	resp, err := s.request(ctx, "CREATE").
		SetQueryParam("overwrite", "true").
		Put(escape(p))
	if err != nil {
		return err
	}
	switch resp.StatusCode() {
	case http.StatusTemporaryRedirect, http.StatusFound, http.StatusSeeOther:
	default:
		if err := check(resp, nil); err != nil {
			return err
		}
		return errors.Errorf("expected a datanode redirect, got %s", resp.Status())
	}
	loc := resp.Header().Get("Location")
	if loc == "" {
		return errors.New("namenode redirect has no location")
	}
	s.log.Debugf("writing %d bytes to datanode %s", len(content), loc)
	resp, err = s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(content).
		Put(loc)
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusCreated {
		return errors.Wrap(check(resp, nil), "datanode write")
	}
	return nil
}

func (s *Store) rename(ctx context.Context, from, to string) error {
	res := &booleanResult{}
	err := check(s.request(ctx, "RENAME").
		SetQueryParam("destination", to).
		SetResult(res).
		Put(escape(from)))
	if err != nil {
		return errors.Wrapf(err, "renaming %s to %s", from, to)
	}
	if !res.Boolean {
		return errors.Errorf("namenode refused to rename %s to %s", from, to)
	}
	return nil
}

func (s *Store) cleanup(ctx context.Context, tmp string) {
	if err := s.delete(ctx, tmp, false); err != nil {
		s.log.Printf("Could not remove partial upload %s: %v", tmp, err)
	}
}

// List implements datapub.Store. Partial uploads left by an interrupted
// Upload are not listed.
func (s *Store) List(ctx context.Context, p string) ([]string, error) {
	res := &listStatusResult{}
	err := check(s.request(ctx, "LISTSTATUS").SetResult(res).Get(escape(p)))
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", p)
	}
	names := make([]string, 0, len(res.FileStatuses.FileStatus))
	for _, st := range res.FileStatuses.FileStatus {
		if strings.HasSuffix(st.PathSuffix, copyingSuffix) {
			continue
		}
		names = append(names, st.PathSuffix)
	}
	sort.Strings(names)
	return names, nil
}
