// Copyright 2020 The Ledgerline Authors
// Use of this source code is governed by an Apache License
// license that can be found in the LICENSE file.

package handoff

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

// RegisterAdminRoutes exposes token generation over the admin HTTP
// listener. Validation and consumption happen on the continuation device's
// path, not here.
func RegisterAdminRoutes(logger log.Logger, svc *admin.Server, service *Service) {
	svc.AddHandler("/orders/{orderID}/handoff", generateToken(logger, service))
}

func generateToken(logger log.Logger, service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			moovhttp.Problem(w, fmt.Errorf("unsupported HTTP verb %s", r.Method))
			return
		}
		orderID := id.Order(mux.Vars(r)["orderID"])
		if orderID == "" {
			moovhttp.Problem(w, fmt.Errorf("missing orderID"))
			return
		}

		var body struct {
			CustomerID string `json:"customerID"`
			Purpose    string `json:"purpose"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			moovhttp.Problem(w, err)
			return
		}
		if body.CustomerID == "" {
			moovhttp.Problem(w, fmt.Errorf("missing customerID"))
			return
		}

		token, err := service.Generate(orderID, id.Customer(body.CustomerID), body.Purpose)
		if err != nil {
			if err == ErrRateLimited {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			moovhttp.Problem(w, err)
			return
		}
		logger.Log("handoff", "generated token", "orderID", orderID)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		json.NewEncoder(w).Encode(map[string]string{
			"token":     token.Token.String(),
			"url":       token.URL,
			"expiresAt": token.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
}
