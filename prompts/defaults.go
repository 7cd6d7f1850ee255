package prompts

// defaultTemplates covers the planning prompts the system needs even when
// no <prompts-root> directory has been configured. Keys are
// "category/name", matching the on-disk layout.
var defaultTemplates = map[string]string{
	"router/classify": "Classify the following user message as exactly one of: qa|technical. " +
		"Output exactly one of qa|technical and no other text.\n\nMessage:\n{query}",

	"planner/decompose": "Decompose the following request into a JSON object with a \"steps\" " +
		"list. Each step has an \"agent_type\" field (one of geometry, material, physics, study), " +
		"a \"description\" field (what the step accomplishes), and an \"input_snippet\" field " +
		"(a short natural-language fragment for that agent). Respond with JSON only.\n\n" +
		"Request:\n{query}",

	"planner/geometry": "You are the geometry planner. Produce a JSON geometry plan (shapes and " +
		"operations) for the following request. Respond with JSON only.\n\n" +
		"{skills}\n\nContext from other agents:\n{context}\n\nRequest:\n{query}",

	"planner/material": "You are the material planner. Produce a JSON material assignment for the " +
		"following request. Respond with JSON only.\n\n{skills}\n\n" +
		"Context from other agents:\n{context}\n\nRequest:\n{query}",

	"planner/physics": "You are the physics planner. Produce a JSON physics setup (loads, " +
		"constraints, couplings) for the following request. Respond with JSON only.\n\n" +
		"{skills}\n\nContext from other agents:\n{context}\n\nRequest:\n{query}",

	"planner/study": "You are the study planner. Produce a JSON study configuration (mesh " +
		"controls, solver settings) for the following request. Respond with JSON only.\n\n" +
		"{skills}\n\nContext from other agents:\n{context}\n\nRequest:\n{query}",

	"raoi/think": "Given the current task plan and its step statuses below, decide the next " +
		"action. Respond with JSON: {{\"action\": ..., \"step_id\": ..., \"params\": {{...}}.\n\n" +
		"Task plan:\n{plan}",

	"raoi/rollback": "A step of the plan below failed with the error shown. Propose the step action " +
		"to roll back to (one of the listed actions, e.g. add_material) and replacement inputs as " +
		"JSON: {{\"rollback_action\": ..., \"material_input\": ..., " +
		"\"physics_input\": ...}.\n\nSteps:\n{step}\n\nError:\n{error}",

	"raoi/refine": "Execution of the plan below ran into a problem. Analyse the error/feedback and " +
		"propose a concrete, actionable refinement (do not restate the user's request). " +
		"Respond with JSON only: {{\"suggested_changes\": ..., \"skip_current\": false, " +
		"\"modified_steps\": [{{\"step_id\": ..., \"parameters\": {{...}}], \"new_steps\": " +
		"[{{\"step_type\": ..., \"action\": ..., \"parameters\": {{...}}], \"drop_step_ids\": []}.\n\n" +
		"Plan:\n{plan}\n\nFeedback:\n{feedback}",

	"raoi/decompose": "Describe, from scratch, the ordered COMSOL-style steps needed for the " +
		"following modeling request. Respond with JSON only: {{\"steps\": [{{\"step_type\": ..., " +
		"\"action\": ...}], \"stop_after_step\": ...}. stop_after_step names the action to save " +
		"and stop after, or null for the full pipeline.\n\nRequest:\n{query}",

	"qa/answer": "Answer the following question helpfully and concisely.\n\n" +
		"Session context:\n{context}\n\nQuestion:\n{query}",

	"summary/turn": "Summarize the outcome of this modeling turn in one or two sentences for a " +
		"human reading a chat log.\n\nTask plan:\n{plan}",
}
