// Package id provides ID generation helpers used across the server.
package id

import (
	nanoid "github.com/matoous/go-nanoid/v2"
)

const DefaultLength = 21

const (
	PrefixConversation  = "conv"
	PrefixMessage       = "msg"
	PrefixFriendRequest = "req"
)

func New(prefix string) string {
	id, err := nanoid.New(DefaultLength)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

func NewWithLength(prefix string, length int) string {
	id, err := nanoid.New(length)
	if err != nil {
		panic("nanoid generation failed: " + err.Error())
	}
	return prefix + "_" + id
}

func NewConversation() string  { return New(PrefixConversation) }
func NewMessage() string       { return New(PrefixMessage) }
func NewFriendRequest() string { return New(PrefixFriendRequest) }
