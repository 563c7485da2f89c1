// Package hubspace is the client for the HubSpace (Afero) cloud API.
//
// Authentication uses the OAuth2 password grant against the HubSpace
// identity realm. Tokens are cached and refreshed automatically; when the
// refresh token is rejected the client logs in again with the stored
// password.
//
// Errors are classified with three sentinels so callers can decide how to
// react:
//
//   - ErrAuthFailed: credentials rejected, user action needed
//   - ErrConnectionFailed: network or timeout, retry later
//   - ErrUnexpectedResponse: anything else the cloud returned
//
// # Usage
//
//	c, err := hubspace.New(hubspace.Config{Username: u, Password: p})
//	if err != nil {
//	    return err
//	}
//	raw, err := c.Metadevices(ctx)
//	listing, err := device.Parse(raw)
//
// Client is safe for concurrent use.
package hubspace
