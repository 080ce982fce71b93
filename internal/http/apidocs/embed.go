// Package apidocs contains the embedded OpenAPI document and its viewer page.
package apidocs

import "embed"

//go:embed index.html init.js openapi.yaml
var FS embed.FS

// ContentSecurityPolicy admits the viewer assets loaded from the CDN.
const ContentSecurityPolicy = "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' https://unpkg.com; img-src 'self' data:; frame-ancestors 'self'; object-src 'none'"
