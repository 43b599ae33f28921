package decompose

import "fmt"

// decomposePrompt is the instruction template wrapped around the task text.
// Arguments: min subtasks, max subtasks, task description.
const decomposePrompt = `Split this task into %d-%d specific, actionable subtasks.
Respond ONLY with valid JSON in this exact format, with no additional explanation:
{"subtasks": ["subtask 1", "subtask 2", "subtask 3"]}

Main task: %s

JSON:`

// BuildPrompt renders the decomposition prompt for task. The task text is
// embedded verbatim; callers trim it beforehand.
func BuildPrompt(task string, minSubtasks, maxSubtasks int) string {
	return fmt.Sprintf(decomposePrompt, minSubtasks, maxSubtasks, task)
}
