package service

import (
	"fmt"
	stdstrings "strings"
)

type Handler struct {
	Name  string
	count int
}

type Notifier interface {
	Notify(msg string) error
}

func NewHandler(name string) *Handler {
	return &Handler{Name: name}
}

func (h *Handler) Handle(msg string) error {
	if stdstrings.TrimSpace(msg) == "" {
		return fmt.Errorf("empty message")
	}
	h.count++
	return nil
}

func (h Handler) Count() int {
	return h.count
}
