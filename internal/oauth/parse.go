package oauth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wrale/oauth2-flows/internal/endpoint"
	"github.com/wrale/oauth2-flows/internal/scope"
)

var (
	errNotJSONObject     = errors.New("response body is not a JSON object")
	errUnexpectedStatus  = errors.New("unexpected status without an error body")
	errInvalidErrorField = errors.New("error member must be a string")
)

// ParseTokenResponse parses a token endpoint response. A body containing
// an "error" member is always routed to the error parser and returned as
// *ProtocolError, even when it also carries success fields. Malformed
// bodies yield *endpoint.ParseError.
func ParseTokenResponse[S scope.Scope](resp *endpoint.Response) (*TokenResponse[S], error) {
	fields, err := decodeObject(resp)
	if err != nil {
		return nil, err
	}
	if perr := protocolErrorFrom(resp, fields); perr != nil {
		return nil, perr
	}
	if !resp.IsSuccess() {
		return nil, endpoint.NewParseError(resp, errUnexpectedStatus)
	}

	tok := &TokenResponse[S]{}
	for key, raw := range fields {
		var err error
		switch key {
		case "access_token":
			err = json.Unmarshal(raw, &tok.AccessToken)
		case "token_type":
			err = json.Unmarshal(raw, &tok.TokenType)
		case "expires_in":
			if isNull(raw) {
				continue
			}
			var v flexibleInt
			if err = json.Unmarshal(raw, &v); err == nil {
				n := int64(v)
				tok.ExpiresIn = &n
			}
		case "refresh_token":
			err = unmarshalOptionalString(raw, &tok.RefreshToken)
		case "scope":
			err = json.Unmarshal(raw, &tok.Scope)
		case "id_token":
			err = unmarshalOptionalString(raw, &tok.IDToken)
		default:
			if tok.Extra == nil {
				tok.Extra = make(map[string]any)
			}
			var v any
			if err = json.Unmarshal(raw, &v); err == nil {
				tok.Extra[key] = v
			}
		}
		if err != nil {
			return nil, endpoint.NewParseError(resp, fmt.Errorf("decoding %s: %w", key, err))
		}
	}

	if tok.AccessToken == "" {
		return nil, endpoint.NewParseError(resp, ErrMissingAccessToken)
	}
	if tok.TokenType == "" {
		return nil, endpoint.NewParseError(resp, ErrMissingTokenType)
	}
	return tok, nil
}

// ParseDeviceAuthorizationResponse parses a device authorization response
// per RFC 8628 section 3.2. The non-standard verification_url member is
// accepted as an alias of verification_uri.
func ParseDeviceAuthorizationResponse(resp *endpoint.Response) (*DeviceAuthorizationResponse, error) {
	fields, err := decodeObject(resp)
	if err != nil {
		return nil, err
	}
	if perr := protocolErrorFrom(resp, fields); perr != nil {
		return nil, perr
	}
	if !resp.IsSuccess() {
		return nil, endpoint.NewParseError(resp, errUnexpectedStatus)
	}

	out := &DeviceAuthorizationResponse{}
	for key, raw := range fields {
		var err error
		switch key {
		case "device_code":
			err = json.Unmarshal(raw, &out.DeviceCode)
		case "user_code":
			err = json.Unmarshal(raw, &out.UserCode)
		case "verification_uri":
			err = json.Unmarshal(raw, &out.VerificationURI)
		case "verification_url":
			if out.VerificationURI == "" {
				err = json.Unmarshal(raw, &out.VerificationURI)
			}
		case "verification_uri_complete":
			err = unmarshalOptionalString(raw, &out.VerificationURIComplete)
		case "expires_in", "interval":
			if isNull(raw) {
				continue
			}
			var v flexibleInt
			if err = json.Unmarshal(raw, &v); err == nil {
				if key == "interval" {
					out.Interval = int64(v)
				} else {
					out.ExpiresIn = int64(v)
				}
			}
		default:
			if out.Extra == nil {
				out.Extra = make(map[string]any)
			}
			var v any
			if err = json.Unmarshal(raw, &v); err == nil {
				out.Extra[key] = v
			}
		}
		if err != nil {
			return nil, endpoint.NewParseError(resp, fmt.Errorf("decoding %s: %w", key, err))
		}
	}

	switch {
	case out.DeviceCode == "":
		return nil, endpoint.NewParseError(resp, errors.New("device_code is missing"))
	case out.UserCode == "":
		return nil, endpoint.NewParseError(resp, errors.New("user_code is missing"))
	case out.VerificationURI == "":
		return nil, endpoint.NewParseError(resp, errors.New("verification_uri is missing"))
	case out.ExpiresIn <= 0:
		return nil, endpoint.NewParseError(resp, errors.New("expires_in is missing or not positive"))
	}
	return out, nil
}

// ParseErrorBody decodes an OAuth2 error body from raw JSON
func ParseErrorBody(data []byte) (ErrorBody, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return ErrorBody{}, errNotJSONObject
	}
	if _, ok := fields["error"]; !ok {
		return ErrorBody{}, errors.New("error member is missing")
	}
	return errorBodyFrom(fields)
}

func decodeObject(resp *endpoint.Response) (map[string]json.RawMessage, error) {
	if resp == nil {
		return nil, endpoint.NewParseError(nil, errors.New("nil response"))
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body, &fields); err != nil {
		return nil, endpoint.NewParseError(resp, fmt.Errorf("%w: %v", errNotJSONObject, err))
	}
	if fields == nil {
		return nil, endpoint.NewParseError(resp, errNotJSONObject)
	}
	return fields, nil
}

// protocolErrorFrom returns a *ProtocolError or *endpoint.ParseError when
// the object carries an error member, nil otherwise.
func protocolErrorFrom(resp *endpoint.Response, fields map[string]json.RawMessage) error {
	if _, ok := fields["error"]; !ok {
		return nil
	}
	body, err := errorBodyFrom(fields)
	if err != nil {
		return endpoint.NewParseError(resp, err)
	}
	return &ProtocolError{StatusCode: resp.StatusCode, Body: body}
}

func errorBodyFrom(fields map[string]json.RawMessage) (ErrorBody, error) {
	var body ErrorBody
	for key, raw := range fields {
		var err error
		switch key {
		case "error":
			var code string
			if err = json.Unmarshal(raw, &code); err != nil || code == "" {
				return ErrorBody{}, errInvalidErrorField
			}
			body.Error = ErrorCode(code)
		case "error_description":
			err = unmarshalOptionalString(raw, &body.ErrorDescription)
		case "error_uri":
			err = unmarshalOptionalString(raw, &body.ErrorURI)
		default:
			if body.Extensions == nil {
				body.Extensions = make(map[string]any)
			}
			var v any
			if err = json.Unmarshal(raw, &v); err == nil {
				body.Extensions[key] = v
			}
		}
		if err != nil {
			return ErrorBody{}, fmt.Errorf("decoding %s: %w", key, err)
		}
	}
	return body, nil
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}

func unmarshalOptionalString(raw json.RawMessage, dst *string) error {
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
