// Package ov holds the view types returned by the HTTP API.
package ov

import (
	"time"

	"uvc-camd/pkg/utils/ps"
)

type StreamStatus struct {
	State           string    `json:"state"`
	FramesPublished uint64    `json:"framesPublished"`
	LastFrameAt     time.Time `json:"lastFrameAt"`
	LastEncoding    string    `json:"lastEncoding"`
	Recording       bool      `json:"recording"`
}

type SystemStatus struct {
	CPU    ps.CPU    `json:"cpu"`
	Memory ps.Memory `json:"memory"`
	Disk   ps.Disk   `json:"disk"`
}

type RecordRequest struct {
	Action string `json:"action" binding:"required"`
}

type WebdavRequest struct {
	Operation string `json:"operation" binding:"required"`
}
