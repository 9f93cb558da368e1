package webapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	wow "github.com/dogecoinfoundation/wowpay/pkg"
)

var httpCodeForError = map[string]int{
	string(wow.BadRequest):         400,
	string(wow.NotAvailable):       503,
	string(wow.NotFound):           404,
	string(wow.AlreadyExists):      409,
	string(wow.DuplicatePayment):   409,
	string(wow.DBConflict):         503,
	string(wow.BackendUnavailable): 503,
	string(wow.RPCFailure):         503,
	string(wow.MalformedConfig):    500,
	string(wow.UnknownError):       500,
}

func HttpStatusForError(code wow.ErrorCode) int {
	status, found := httpCodeForError[string(code)]
	if !found {
		status = http.StatusInternalServerError
	}
	return status
}

func sendResponse(w http.ResponseWriter, payload any) {
	// note: w.Header after this, so we can call sendError
	b, err := json.Marshal(payload)
	if err != nil {
		sendErrorResponse(w, http.StatusInternalServerError, "marshal", fmt.Sprintf("in json.Marshal: %s", err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.Write(b)
}

func sendBadRequest(w http.ResponseWriter, message string) {
	sendErrorResponse(w, http.StatusBadRequest, wow.BadRequest, message)
}

func sendError(w http.ResponseWriter, where string, err error) {
	var info *wow.ErrorInfo
	if errors.As(err, &info) {
		status := HttpStatusForError(info.Code)
		message := fmt.Sprintf("%s: %s", where, info.Message)
		sendErrorResponse(w, status, info.Code, message)
	} else {
		message := fmt.Sprintf("%s: %s", where, err.Error())
		sendErrorResponse(w, http.StatusInternalServerError, wow.UnknownError, message)
	}
}

func sendErrorResponse(w http.ResponseWriter, statusCode int, code wow.ErrorCode, message string) {
	log.Printf("[!] %s: %s\n", code, message)
	// would prefer to use json.Marshal, but this avoids the need
	// to handle encoding errors arising from json.Marshal itself!
	payload := fmt.Sprintf("{\"error\":{\"code\":%q,\"message\":%q}}", code, message)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store") // do not cache (Browsers cache GET forever by default)
	w.WriteHeader(statusCode)
	w.Write([]byte(payload))
}
