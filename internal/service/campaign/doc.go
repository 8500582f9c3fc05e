// Package campaign implements campaign lifecycle management.
//
// The service layer owns the campaign state machine: create a draft,
// start it (materializing one Message per recipient), pause and resume it,
// and delete it. Every status change is a compare-and-set in the
// repository, so a transition racing with another one applies at most once.
// It depends on interfaces defined in this package and never imports
// net/http or database/sql.
//
// Repository implementations live in repository/postgres/ and repository/memory/.
package campaign
