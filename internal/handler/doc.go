// Package handler defines what the executor needs from a handler instance and
// provides Module, a handler declared in an HCL handler file:
//
//	handler "summarize" {
//	  param      = "request"
//	  priority   = 5
//	  attributes = { model = "gpt-4o-mini" }
//	  scope      = { prefix = "Summary:" }
//	  forward    = <<-EOT
//	    reply = await llm(format("Summarize: %s", request.text))
//	    return "$${prefix} $${reply.content}"
//	  EOT
//	}
//
// Attributes are bound as plain names and as fields of "self". Scope values are
// resolved for the routine's capture list only.
//
// The forward source is an HCL string, so template sequences meant for the
// routine must be escaped as $${...} and %%{...}.
package handler
