// Copyright 2018-2026 Gaia Hub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hub implements the storage hub HTTP API: authenticated writes,
// deletes, listings, token revocation and batched operations on a bucket
// namespace, backed by a pluggable storage driver.
package hub

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/gaiahub/hub/pkg/appctx"
	"github.com/gaiahub/hub/pkg/auth"
	"github.com/gaiahub/hub/pkg/blacklist"
	"github.com/gaiahub/hub/pkg/lock"
	"github.com/gaiahub/hub/pkg/proof"
	"github.com/gaiahub/hub/pkg/queue"
	"github.com/gaiahub/hub/pkg/revocation"
	"github.com/gaiahub/hub/pkg/rhttp/global"
	"github.com/gaiahub/hub/pkg/storage"
	"github.com/gaiahub/hub/pkg/storage/fs/registry"

	// Load storage drivers.
	_ "github.com/gaiahub/hub/pkg/storage/fs/loader"
)

func init() {
	global.Register("hub", New)
}

type config struct {
	Prefix                 string                            `mapstructure:"prefix"`
	ServerName             string                            `mapstructure:"server_name"`
	ReadURL                string                            `mapstructure:"read_url"`
	CacheControl           string                            `mapstructure:"cache_control"`
	MaxFileUploadSize      int64                             `mapstructure:"max_file_upload_size"`
	RequireCorrectHubURL   bool                              `mapstructure:"require_correct_hub_url"`
	ValidHubURLs           []string                          `mapstructure:"valid_hub_urls"`
	Whitelist              []string                          `mapstructure:"whitelist"`
	AuthTimestampCacheSize int                               `mapstructure:"auth_timestamp_cache_size"`
	BlacklistCacheSize     int                               `mapstructure:"blacklist_cache_size"`
	CheckAssocBlacklist    bool                              `mapstructure:"check_assoc_blacklist"`
	ProofsRequired         int                               `mapstructure:"proofs_required"`
	Driver                 string                            `mapstructure:"driver"`
	Drivers                map[string]map[string]interface{} `mapstructure:"drivers"`
	Queue                  queueConfig                       `mapstructure:"queue"`
}

type queueConfig struct {
	Address string `mapstructure:"address"`
	Token   string `mapstructure:"token"`
	Subject string `mapstructure:"subject"`
}

func (c *config) ApplyDefaults() {
	if c.ServerName == "" {
		c.ServerName = "gaia-hub"
	}
	// megabytes
	if c.MaxFileUploadSize == 0 {
		c.MaxFileUploadSize = 20
	}
	if c.AuthTimestampCacheSize == 0 {
		c.AuthTimestampCacheSize = 50000
	}
	if c.BlacklistCacheSize == 0 {
		c.BlacklistCacheSize = 50000
	}
	if c.Driver == "" {
		c.Driver = "memory"
	}
	if c.Queue.Subject == "" {
		c.Queue.Subject = "hub.tasks"
	}
}

type svc struct {
	conf   *config
	log    *zerolog.Logger
	router chi.Router

	driver     storage.Driver
	revocation *revocation.Cache
	blacklist  *blacklist.Cache
	locks      *lock.Registry
	publisher  queue.Publisher
	proofs     *proof.Checker

	// maxBytes is the upload cap in bytes, derived from the configured
	// megabyte count.
	maxBytes     int64
	challenges   []string
	validHubURLs []string
}

// New returns a new hub service.
func New(m map[string]interface{}, log *zerolog.Logger) (global.Service, error) {
	conf := &config{}
	if err := mapstructure.Decode(m, conf); err != nil {
		return nil, errors.Wrap(err, "hub: error decoding conf")
	}
	conf.ApplyDefaults()

	newDriver, ok := registry.NewFuncs[conf.Driver]
	if !ok {
		return nil, errors.New("hub: unknown storage driver: " + conf.Driver)
	}
	driver, err := newDriver(conf.Drivers[conf.Driver])
	if err != nil {
		return nil, errors.Wrap(err, "hub: error creating storage driver")
	}
	if err := driver.EnsureInitialized(context.Background()); err != nil {
		return nil, errors.Wrap(err, "hub: storage driver failed to initialize")
	}

	var publisher queue.Publisher = queue.Noop{}
	if conf.Queue.Address != "" {
		publisher, err = queue.NewNats(conf.Queue.Address, conf.Queue.Token, conf.Queue.Subject, log)
		if err != nil {
			return nil, errors.Wrap(err, "hub: error connecting to the task queue")
		}
	}

	s := &svc{
		conf:       conf,
		log:        log,
		driver:     driver,
		revocation: revocation.New(driver, conf.AuthTimestampCacheSize, log),
		blacklist:  blacklist.New(driver, conf.BlacklistCacheSize, log),
		locks:      lock.NewRegistry(),
		publisher:  publisher,
		proofs:     &proof.Checker{Required: conf.ProofsRequired},
		maxBytes:   conf.MaxFileUploadSize * 1024 * 1024,
		challenges: auth.ValidChallenges(conf.ServerName),
		// the hub's own https URL is always an acceptable hubUrl claim
		validHubURLs: append(append([]string{}, conf.ValidHubURLs...), "https://"+conf.ServerName),
	}
	s.initRouter()
	return s, nil
}

func (s *svc) initRouter() {
	r := chi.NewRouter()
	r.Post("/store/{address}/*", instrument("store", s.handleWrite))
	r.Delete("/delete/{address}/*", instrument("delete", s.handleDelete))
	r.Post("/list-files/{address}", instrument("list_files", s.handleListFiles))
	r.Post("/perform-files/{address}", instrument("perform_files", s.handlePerformFiles))
	r.Post("/revoke-all/{address}", instrument("revoke_all", s.handleRevokeAll))
	r.Get("/hub_info", instrument("hub_info", s.handleHubInfo))
	r.Get("/", s.handleWelcome)
	s.router = r
}

func (s *svc) Prefix() string {
	return s.conf.Prefix
}

func (s *svc) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the API treats /store/a/x/ and /store/a/x alike
		if r.URL.Path != "/" {
			r.URL.Path = strings.TrimSuffix(r.URL.Path, "/")
		}
		// unset raw path, otherwise chi uses it to route and then fails
		// to match percent encoded path segments
		r.URL.RawPath = ""
		s.router.ServeHTTP(w, r)
	})
}

func (s *svc) Close() error {
	s.revocation.Close()
	s.blacklist.Close()
	if err := s.publisher.Close(); err != nil {
		s.log.Error().Err(err).Msg("hub: error closing the task queue")
	}
	return s.driver.Close()
}

// readURLPrefix is the base of every publicURL handed to clients.
func (s *svc) readURLPrefix() string {
	if s.conf.ReadURL != "" {
		return s.conf.ReadURL
	}
	return s.driver.ReadURLPrefix()
}

// enqueue publishes the side effects of a mutation. Publishing is best
// effort, a failure is logged and the originating request still succeeds.
func (s *svc) enqueue(ctx context.Context, task queue.Task) {
	if task.Empty() {
		return
	}
	if err := s.publisher.Enqueue(ctx, task); err != nil {
		log := appctx.GetLogger(ctx)
		log.Error().Err(err).Msg("hub: error enqueueing task")
	}
}

// validAddressSegment mirrors the route shape: bucket addresses are plain
// base58 strings, anything else is not a route of this service.
func validAddressSegment(address string) bool {
	if address == "" {
		return false
	}
	for i := 0; i < len(address); i++ {
		c := address[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}
