package torguapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"
)

// ContentType is the JSON:API media type
const ContentType = "application/vnd.api+json"

// Reply is a complete HTTP response
type Reply struct {
	Headers    map[string]string `json:"headers"`
	StatusCode int               `json:"statusCode"`
	Body       string            `json:"body"`
}

type errorObject struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type errorBody struct {
	Errors []errorObject `json:"errors"`
}

type resultBody struct {
	Data  interface{} `json:"data"`
	Links Links       `json:"links"`
	Meta  Meta        `json:"meta,omitempty"`
}

// MakeReply encodes body and adds the JSON:API and CORS headers
func MakeReply(statusCode int, body interface{}) (*Reply, error) {
	if statusCode == 0 {
		return nil, eris.Wrap(ErrTorguapi, "status_code must be specified")
	}
	if body == nil {
		return nil, eris.Wrap(ErrTorguapi, "body must be specified")
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode body")
	}

	return &Reply{
		Headers: map[string]string{
			"Content-Type":                 ContentType,
			"Access-Control-Allow-Headers": "Content-Type",
			"Access-Control-Allow-Origin":  "*",
			"Access-Control-Allow-Methods": "GET",
		},
		StatusCode: statusCode,
		Body:       string(encoded),
	}, nil
}

// HTTPError builds an error reply like {"errors":[{"status":"404","detail":"Not found"}]}.
// An empty detail is left out and a zero status code is reported as 500.
func HTTPError(statusCode int, detail string) *Reply {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}

	body := errorBody{
		Errors: []errorObject{{
			Status: strconv.Itoa(statusCode),
			Detail: detail,
		}},
	}

	// errorBody always encodes and the status is set
	reply, _ := MakeReply(statusCode, body)
	return reply
}

// Result builds the reply for a list of records. An empty list turns into 404 Not Found.
func Result[T any](records []T, links Links, meta Meta) (*Reply, error) {
	if len(records) == 0 {
		return HTTPError(http.StatusNotFound, ""), nil
	}

	if links == nil {
		links = Links{}
	}

	return MakeReply(http.StatusOK, resultBody{
		Data:  records,
		Links: links,
		Meta:  meta,
	})
}

// Send writes the reply to w
func (r *Reply) Send(w http.ResponseWriter) error {
	for key, value := range r.Headers {
		w.Header().Set(key, value)
	}

	w.WriteHeader(r.StatusCode)
	_, err := w.Write([]byte(r.Body))
	return err
}
