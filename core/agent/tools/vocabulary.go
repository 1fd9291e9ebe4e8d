package tools

// Tool names in the fixed vocabulary.
const (
	ToolSendEmail    = "sendEmail"
	ToolAddLabel     = "addLabel"
	ToolArchiveEmail = "archiveEmail"
	ToolMarkAsRead   = "markAsRead"
	ToolMarkAsUnread = "markAsUnread"
	ToolStarEmail    = "starEmail"
	ToolUnstarEmail  = "unstarEmail"
)

// Vocabulary returns the fixed set of mailbox tools exposed to the model.
// The set is not user-configurable.
func Vocabulary() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        ToolSendEmail,
			Description: "Send a new email or reply to the current email. Use this to respond to the sender or forward information to someone else.",
			Parameters: []ParameterSpec{
				{Name: "to", Type: "string", Description: "Recipient email address", Required: true},
				{Name: "subject", Type: "string", Description: "Email subject line", Required: true},
				{Name: "body", Type: "string", Description: "Email body content (plain text)", Required: true},
				{Name: "isReply", Type: "boolean", Description: "Set to true if this is a reply to the current email (will thread the conversation)"},
			},
		},
		{
			Name:        ToolAddLabel,
			Description: "Add a label to the email for organization. Creates the label if it doesn't exist. Use this to categorize or tag emails.",
			Parameters: []ParameterSpec{
				{Name: "label", Type: "string", Description: "Label name to add (e.g., 'Important', 'Follow-up', 'Newsletters')", Required: true},
				{Name: "hexColor", Type: "string", Description: "Optional hex color for the label background (e.g., '#ff0000'). Only applies to new labels."},
			},
		},
		{
			Name:        ToolArchiveEmail,
			Description: "Archive the email by removing it from the inbox. The email will still be searchable but won't clutter the inbox.",
		},
		{
			Name:        ToolMarkAsRead,
			Description: "Mark the email as read.",
		},
		{
			Name:        ToolMarkAsUnread,
			Description: "Mark the email as unread. Use this if the email needs attention later.",
		},
		{
			Name:        ToolStarEmail,
			Description: "Star the email to mark it as important or for follow-up. Starred emails appear in the Starred folder in Gmail.",
		},
		{
			Name:        ToolUnstarEmail,
			Description: "Remove the star from the email.",
		},
	}
}
