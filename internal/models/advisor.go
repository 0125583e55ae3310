package models

import (
	"strings"
	"time"
)

type Advisor struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	FirstLastName  string     `json:"firstLastName,omitempty"`
	Email          string     `json:"email,omitempty"`
	Phone          string     `json:"phone,omitempty"`
	RoleID         int64      `json:"roleId"`
	IsActive       bool       `json:"isActive"`
	LastSelectedAt *time.Time `json:"lastSelectedAt,omitempty"`
}

func (a *Advisor) FullName() string {
	return strings.TrimSpace(a.Name + " " + a.FirstLastName)
}

type Role struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
