package domain

import "time"

type UsageLog struct {
	RunID         string
	AvatarPath    string
	FramePath     string
	OutputPath    string
	Opacity       Opacity
	AvatarBytes   int64
	FrameBytes    int64
	OutputBytes   int64
	SquareSize    int
	OutputSize    int
	Pixels        int64
	ComputeTimeMS int64
	CacheHit      bool
	CreatedAt     time.Time
}
