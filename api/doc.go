/*
Package api contains the HTTP surface of the threshold key store.

Subpackages:

 1. server - the HTTP server shared by both services
 2. proxyhandler - the external API of the Proxy Service (/encrypt, /decrypt, /ping)
 3. sharehandler - the internal, mTLS-only API of the Share Service (/partial)

Each handler package also provides a client for its API.

# Errors

Both services report failures as

	{"errorKind": "UnknownKeyError", "message": "unknown key"}

Messages are fixed per kind and never carry key material, partial results
or the cause of a decryption failure.

	UnknownKeyError                            404
	InvalidRequestError, AuthenticationTagError 400
	UnauthorizedError                          401 (Share Service), 502 (Proxy Service)
	RemoteUnavailableError                     503
	DeadlineExceededError                      504
	CombinationError, InsufficientSharesError  500
*/
package api
