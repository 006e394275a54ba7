// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package batch

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ledgerline/settler/pkg/id"

	"github.com/go-kit/kit/log"
	"github.com/gorilla/mux"
	"github.com/moov-io/base/admin"
	moovhttp "github.com/moov-io/base/http"
)

// RegisterAdminRoutes lets operators trigger settlement runs and upload
// retries over the admin HTTP listener.
func RegisterAdminRoutes(logger log.Logger, svc *admin.Server, runner *Runner) {
	svc.AddHandler("/batches/run", runBatches(logger, runner))
	svc.AddHandler("/batches/{batchID}/retry", retryUpload(logger, runner))
}

func runBatches(logger log.Logger, runner *Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			moovhttp.Problem(w, fmt.Errorf("unsupported HTTP verb %s", r.Method))
			return
		}

		result := runner.Run()
		logger.Log("batch", "manual run finished", "success", result.Success, "batchID", result.BatchID, "orders", result.OrderCount)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(result)
	}
}

func retryUpload(logger log.Logger, runner *Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			moovhttp.Problem(w, fmt.Errorf("unsupported HTTP verb %s", r.Method))
			return
		}
		batchID := id.Batch(mux.Vars(r)["batchID"])
		if batchID == "" {
			moovhttp.Problem(w, fmt.Errorf("missing batchID"))
			return
		}

		result := runner.RetryUpload(batchID)
		logger.Log("batch", "manual upload retry finished", "success", result.Success, "batchID", result.BatchID)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(result)
	}
}
