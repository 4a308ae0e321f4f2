package notifier

import (
	"fmt"
	"strings"

	"tasktracker/internal/model"
)

// postDateLayout - формат даты публикации комментария в письме.
const postDateLayout = "02.01.2006 15:04"

// renderTaskBody формирует текст письма с информацией о задаче.
func renderTaskBody(task *model.Task) string {
	dueDate := ""
	if task.DueDate != nil {
		dueDate = task.DueDate.Format("2006-01-02")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Task name: %s\n", task.Name)
	fmt.Fprintf(&b, "Specification: %s\n", task.Specification)
	fmt.Fprintf(&b, "Due date: %s\n", dueDate)
	fmt.Fprintf(&b, "Creator: %s\n", username(task.Creator))
	fmt.Fprintf(&b, "Performer: %s\n", username(task.Performer))
	fmt.Fprintf(&b, "Status: %s", model.StatusLabel(task.Status))
	return b.String()
}

// renderCommentBody формирует текст письма о новом комментарии к задаче.
func renderCommentBody(task *model.Task, comment *model.Comment) string {
	var b strings.Builder
	b.WriteString(renderTaskBody(task))
	fmt.Fprintf(&b, "\n\nNew comment: %s\n", comment.Description)
	fmt.Fprintf(&b, "Author: %s\n", username(comment.Author))
	fmt.Fprintf(&b, "Posting date: %s", comment.PostDate.Format(postDateLayout))
	return b.String()
}

func username(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.Username
}
