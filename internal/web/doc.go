// Package web serves the public site: a handful of static pages and the
// POST /message endpoint that relays form submissions to the listener as
// datagrams.
package web
