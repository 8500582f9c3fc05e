// Package recipient resolves a campaign's targeting rule into the concrete
// list of phones that will receive it.
//
// Resolution is deterministic for a given roster snapshot: recipients are
// ordered by customer id and deduplicated by normalized phone, first
// occurrence winning. An empty result is not an error; only a misconfigured
// rule is.
package recipient
