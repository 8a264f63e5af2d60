package task

import "github.com/roboscene/taskenv/pkg/core"

// maxReward is the normalization ceiling; sparse rewards make it 1.0, so the
// normalized variant is currently an identity mapping reserved for future
// shaping.
const maxReward = 1.0

// Reward maps an evaluation to the sparse scalar reward.
func Reward(result core.EvaluationResult) float64 {
	if result.Success {
		return 1.0
	}
	return 0.0
}

// NormalizedReward divides the sparse reward by the maximum reward.
func NormalizedReward(result core.EvaluationResult) float64 {
	return Reward(result) / maxReward
}
