/*
Copyright © 2025 Jamie Mulcahy <jamie@mulcahy.dev>
*/

package main

import (
	"fmt"
	"log"
	"strings"
	"time"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}

// Rejection codes carried back to the requesting client. Rejections are
// never broadcast and never mutate state.
const (
	codeUnauthorized    = "unauthorized"
	codeContentTooLong  = "content_too_long"
	codeInvalidName     = "invalid_name"
	codeCardGrouped     = "card_grouped"
	codeVoteLimit       = "vote_limit_reached"
	codeColumnVoteLimit = "column_vote_limit_reached"
	codeStorage         = "storage"
)

// opError is a typed operation rejection.
type opError struct {
	Code    string
	Message string
}

func (e *opError) Error() string {
	return e.Code + ": " + e.Message
}

func errUnauthorized(msg string) *opError {
	return &opError{Code: codeUnauthorized, Message: msg}
}

func errContentTooLong() *opError {
	return &opError{Code: codeContentTooLong, Message: fmt.Sprintf("card content is limited to %d characters", maxCardContent)}
}

func errInvalidName() *opError {
	return &opError{Code: codeInvalidName, Message: fmt.Sprintf("names must be between 1 and %d characters", maxDisplayName)}
}

func errCardGrouped() *opError {
	return &opError{Code: codeCardGrouped, Message: "this card is grouped; vote on the group instead"}
}

func errVoteLimit() *opError {
	return &opError{Code: codeVoteLimit, Message: "you have used all of your votes"}
}

func errColumnVoteLimit() *opError {
	return &opError{Code: codeColumnVoteLimit, Message: "you have used all of your votes for this column"}
}

func errStorage() *opError {
	return &opError{Code: codeStorage, Message: "the change could not be saved; please try again"}
}
