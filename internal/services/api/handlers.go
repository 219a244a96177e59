package api

import (
	"net/http"
	"strconv"

	perr "gitrank/internal/platform/errors"
	phttp "gitrank/internal/platform/net/http"
	"gitrank/internal/platform/net/http/bind"
	backfilldom "gitrank/internal/services/backfill/domain"
	lbmod "gitrank/internal/services/leaderboard/module"
	rollupdom "gitrank/internal/services/rollup/domain"
	rollupsvc "gitrank/internal/services/rollup/service"
)

type handlers struct {
	pipeline *rollupsvc.Pipeline
	rollup   *rollupsvc.Service
	lb       lbmod.Ports
	backfill backfilldom.RunnerPort
}

func (h *handlers) mount(r phttp.Router) {
	r.Post("/users/{id}/refresh", phttp.Handle(h.refreshUser))
	r.Post("/users/{id}/sync", phttp.Handle(h.syncUser))
	r.Delete("/users/{id}", phttp.Handle(h.deleteUser))
	r.Get("/leaderboard/{period}", phttp.Handle(h.leaderboardPage))
	r.Post("/backfill/run", phttp.Handle(h.runBackfill))
}

// refreshRequest carries the caller-supplied provider credentials
type refreshRequest struct {
	GithubHandle  string `json:"github_handle" validate:"omitempty,max=100"`
	GithubToken   string `json:"github_token" validate:"omitempty,max=500"`
	GitlabHandle  string `json:"gitlab_handle" validate:"omitempty,max=100"`
	GitlabToken   string `json:"gitlab_token" validate:"omitempty,max=500"`
	GitlabBaseURL string `json:"gitlab_base_url" validate:"omitempty,url"`

	// Both requests an explicit dual-provider refresh instead of the
	// default github-first selection
	Both bool `json:"both"`
}

func (h *handlers) refreshUser(r *http.Request) phttp.Response {
	userID := phttp.Param(r, "id")
	req, err := bind.ParseJSON[refreshRequest](r)
	if err != nil {
		return phttp.Error(err)
	}

	creds := rollupdom.Credentials{
		GithubHandle:  req.GithubHandle,
		GithubToken:   req.GithubToken,
		GitlabHandle:  req.GitlabHandle,
		GitlabToken:   req.GitlabToken,
		GitlabBaseURL: req.GitlabBaseURL,
	}

	var res rollupdom.RefreshResult
	if req.Both {
		res, err = h.pipeline.RefreshBoth(r.Context(), userID, creds)
	} else {
		res, err = h.pipeline.RefreshAndSync(r.Context(), userID, creds)
	}
	if err != nil {
		return phttp.Error(err)
	}
	return phttp.OK(map[string]any{
		"provider": res.Provider,
		"periods":  res.Periods,
	})
}

func (h *handlers) syncUser(r *http.Request) phttp.Response {
	if err := h.lb.Sync.Sync(r.Context(), phttp.Param(r, "id")); err != nil {
		return phttp.Error(err)
	}
	return phttp.NoContent()
}

func (h *handlers) deleteUser(r *http.Request) phttp.Response {
	userID := phttp.Param(r, "id")
	if err := h.rollup.DeleteUser(r.Context(), userID); err != nil {
		return phttp.Error(err)
	}
	if err := h.lb.Sync.Remove(r.Context(), userID); err != nil {
		return phttp.Error(err)
	}
	return phttp.NoContent()
}

func (h *handlers) leaderboardPage(r *http.Request) phttp.Response {
	period := rollupdom.Period(phttp.Param(r, "period"))
	cursor, err := queryInt(r, "cursor", 0)
	if err != nil {
		return phttp.Error(err)
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return phttp.Error(err)
	}

	page, err := h.lb.Read.Page(r.Context(), period, cursor, limit)
	if err != nil {
		return phttp.Error(err)
	}
	return phttp.OK(page)
}

func (h *handlers) runBackfill(r *http.Request) phttp.Response {
	sum, err := h.backfill.Run(r.Context())
	if err != nil {
		return phttp.Error(err)
	}
	return phttp.Accepted(sum)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, perr.InvalidArgf("bad %s %q", name, raw)
	}
	return n, nil
}
