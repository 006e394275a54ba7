// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package verification

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

// RegisterAdminRoutes exposes verification state over the admin HTTP
// listener. Completion attempts (operator approvals, reported amounts)
// come in here; starting a verification stays with order intake, which is
// the only caller holding plaintext bank details.
func RegisterAdminRoutes(logger log.Logger, svc *admin.Server, manager *Manager) {
	svc.AddHandler("/orders/{orderID}/verification", verificationHandler(logger, manager))
}

func verificationHandler(logger log.Logger, manager *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := id.Order(mux.Vars(r)["orderID"])
		if orderID == "" {
			moovhttp.Problem(w, fmt.Errorf("missing orderID"))
			return
		}

		switch r.Method {
		case "GET":
			status, err := manager.Status(orderID)
			if err != nil {
				moovhttp.Problem(w, err)
				return
			}
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			json.NewEncoder(w).Encode(map[string]string{"status": string(status)})

		case "PUT":
			var attempt Attempt
			if err := json.NewDecoder(r.Body).Decode(&attempt); err != nil {
				moovhttp.Problem(w, err)
				return
			}
			result, err := manager.Complete(orderID, &attempt)
			if err != nil {
				if err == ErrRateLimited {
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				moovhttp.Problem(w, err)
				return
			}
			logger.Log("verification", "completion attempt", "orderID", orderID, "status", result.Status)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			json.NewEncoder(w).Encode(result)

		case "DELETE":
			if err := manager.Cancel(orderID); err != nil {
				moovhttp.Problem(w, err)
				return
			}
			w.WriteHeader(http.StatusOK)

		default:
			moovhttp.Problem(w, fmt.Errorf("unsupported HTTP verb %s", r.Method))
		}
	}
}
