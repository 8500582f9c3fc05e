// Package messaging renders campaign templates for individual recipients.
//
// Templates use the Liquid language. Recognized variables are name,
// first_name, service and price; anything else renders as an empty string.
// Rendering happens once per recipient when a campaign is first started, so
// the output of this package is what gets stored and sent.
package messaging
