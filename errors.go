/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Game errors are sent verbatim to the offending client as an "error"
// message, so they read as display text rather than Go error strings.
var (
	errRoomNotFound   = errors.New("Room not found")
	errRoomExists     = errors.New("Room already exists")
	errGameInProgress = errors.New("Game already in progress")
	errNameTaken      = errors.New("Name already taken")
	errNotHost        = errors.New("Only the host can start the game")
	errAlreadyStarted = errors.New("Game already started")
	errQuestionFetch  = errors.New("Failed to fetch question")
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
