// Package connectors locates book files for ingestion.
//
// The filesystem connector resolves file:// URIs and finds supported book
// files under a directory. Remote sources are out of scope: books arrive
// as local files.
package connectors
