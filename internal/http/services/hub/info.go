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

package hub

import (
	"fmt"
	"net/http"

	"github.com/gaiahub/hub/pkg/appctx"
	"github.com/gaiahub/hub/pkg/auth"
)

type hubInfoResponse struct {
	ChallengeText              string `json:"challenge_text"`
	LatestAuthVersion          string `json:"latest_auth_version"`
	MaxFileUploadSizeMegabytes int64  `json:"max_file_upload_size_megabytes"`
	ReadURLPrefix              string `json:"read_url_prefix"`
}

func (s *svc) handleHubInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, hubInfoResponse{
		ChallengeText:              auth.ChallengeText(s.conf.ServerName),
		LatestAuthVersion:          auth.LatestAuthVersion,
		MaxFileUploadSizeMegabytes: s.conf.MaxFileUploadSize,
		ReadURLPrefix:              s.readURLPrefix(),
	})
}

const welcomePage = `<!DOCTYPE html>
<html>
<head><title>Gaia Storage Hub</title></head>
<body>
<h1>Gaia Storage Hub</h1>
<p>This is a storage hub service. Clients write through authenticated
endpoints and read through <a href="%s">%s</a>.</p>
<p>See <a href="/hub_info">/hub_info</a> for connection details.</p>
</body>
</html>
`

func (s *svc) handleWelcome(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	prefix := s.readURLPrefix()
	if _, err := fmt.Fprintf(w, welcomePage, prefix, prefix); err != nil {
		log := appctx.GetLogger(r.Context())
		log.Err(err).Msg("error writing response")
	}
}
