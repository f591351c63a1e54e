// Package sharestore holds one participant's key shares.
//
// A participant's shares are described by a share document:
//
//	{"version":1,"shareIndex":2,"shares":[{"keyId":"test-key-1","share":"<64 hex chars>"}]}
//
// Documents are read from a share source selected by URI:
//
//   - file:///etc/xks/share-2.json
//   - s3://bucket/path/share-2.json?region=eu-west-1&endpoint=minio.local:9000
//   - vault://vault.example.com:8200/secret/xks/share-2?field=document&tls=true
//
// Several URIs may be given; they are tried in order. Load retries sources
// that are temporarily unavailable and gives up immediately on documents that
// do not parse.
//
// The Store is immutable for the lifetime of a process apart from Replace,
// which swaps every share at once after in-flight readers have finished.
package sharestore
