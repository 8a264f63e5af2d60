package core

// ObjectState is the per-step view of one tracked rigid body. The pose and
// velocities are refreshed from the engine every step; the Settled* fields are
// written once per episode, after the settling procedure completes.
type ObjectState struct {
	ModelID         string  `json:"modelId"`
	Scale           float64 `json:"scale"`
	Pose            Pose    `json:"pose"`
	LinearVelocity  Vec3    `json:"linearVelocity"`
	AngularVelocity Vec3    `json:"angularVelocity"`

	// Snapshot taken when settling finished.
	SettledPose Pose `json:"settledPose"`
	// Local bbox extent rotated into the settled orientation, world frame.
	WorldBBoxExtent Vec3 `json:"worldBboxExtent"`
}

// Contact is one contact record between two named actors, with the total
// impulse accumulated over the contact points.
type Contact struct {
	ActorA  string `json:"actorA"`
	ActorB  string `json:"actorB"`
	Impulse Vec3   `json:"impulse"`
}

// EvaluationResult is the per-step task verdict: a set of named diagnostic
// flags plus the overall success bit. It is recomputed every step and never
// persisted across steps.
type EvaluationResult struct {
	Success bool               `json:"success"`
	Flags   map[string]bool    `json:"flags"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Flag names shared between evaluators, storage and streaming.
const (
	FlagAllObjKeepHeight = "all_obj_keep_height"
	FlagMovedCorrectObj  = "moved_correct_obj"
	FlagNearTarget       = "near_tgt_obj"
	FlagClosestToTarget  = "is_closest_to_tgt"

	FlagIsGrasped        = "is_grasped"
	FlagConsecutiveGrasp = "consecutive_grasp"
	FlagLiftedObject     = "lifted_object"
	FlagLiftedObjectSig  = "lifted_object_significantly"
)
