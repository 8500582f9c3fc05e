// Package optout manages the phones a tenant must not message.
//
// Opt-outs arrive from gateway webhooks (a recipient replied STOP or the
// provider blocked the number) and from operators through the API. The
// recipient resolver consults them before any Message is materialized.
//
// The service layer contains pure business logic and depends on the
// Repository interface defined in repository.go. It never imports
// net/http or database/sql directly.
package optout
