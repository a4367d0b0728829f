package descriptions

import "sort"

// Tool names served over MCP.
const (
	ReportGenerate   = "report_generate"
	ReportOverlays   = "report_overlays"
	ReportVerify     = "report_verify"
	ReportServerInfo = "report_server_info"
	PhotoPrepare     = "photo_prepare"
	DraftSave        = "draft_save"
	DraftLoad        = "draft_load"
	DraftClear       = "draft_clear"
)

// Tool descriptions with practical examples and use cases

const (
	ReportGenerateDescription = `Fill the wildlife capture report PDF from form values and two photos.

**When to use:** A hunter has captured an animal and needs the official capture report with the before and after photos embedded.

**What it does:** Prepares both photos (EXIF orientation, longest side bounded to 800px, JPEG), marks exactly one gender circle and one disposal circle, splits the dates into year/month/day, adds the Japanese weekday of the capture date and writes capture-report-YYYY-MM-DD.pdf to the output directory.

**Examples:**
• "Create the report for Taro Yamada, female boar caught 2025-04-01 at North ridge, diagram 12, buried, photos before.jpg and after.jpg"
• "Generate the report from my saved draft with photos day1/a.jpg and day1/b.jpg"

**Common workflows:**
1. draft_load → fill missing values → report_generate → report_verify
2. photo_prepare on each photo to check orientation → report_generate

**Best practices:** Photo paths are resolved below the working directory. Gender accepts Male/Female or オス/メス; disposal accepts Burial, Incineration, Personal consumption, Transport to a wild meat processing facility or 埋設/焼却/自家消費/獣肉処理施設.`

	ReportOverlaysDescription = `Show which template overlays are drawn for a gender and disposal method.

**When to use:** Checking the circle marks a report will carry before generating it, or debugging a custom template.

**Examples:**
• "Which marks are drawn for a male animal taken to a processing facility?"

**Best practices:** Unset values mean no mark of that group is drawn.`

	ReportVerifyDescription = `Check that a generated report is a readable PDF and count its pages.

**When to use:** After report_generate, before sending the report to the municipality.

**Examples:**
• "Verify capture-report-2025-04-01.pdf"

**Best practices:** Paths are resolved below the output directory.`

	ReportServerInfoDescription = `Get server configuration, the active template, accepted option values and recently generated reports.

**When to use:** Starting a session, or checking which font, time zone and output directory are in use.`

	PhotoPrepareDescription = `Prepare one photo the way it will be embedded and return the preview.

**When to use:** Checking that a photo is readable and correctly oriented before generating a report.

**What it does:** Applies the EXIF orientation, scales the longest side to at most 800px and re-encodes as JPEG.

**Examples:**
• "Show me before.jpg as it will appear on the report"`

	DraftSaveDescription = `Save the form values (everything except the photos) as the current draft.

**When to use:** Collecting report details over several steps. The saved draft replaces the previous one.

**Examples:**
• "Remember that the capturer is Taro Yamada and the location is North ridge"`

	DraftLoadDescription = `Load the saved draft. Without a draft both dates default to today.

**When to use:** Resuming an unfinished report.`

	DraftClearDescription = `Delete the saved draft.

**When to use:** After a report has been submitted, or to start over.`
)

// ToolDescriptions maps tool names to their descriptions
var ToolDescriptions = map[string]string{
	ReportGenerate:   ReportGenerateDescription,
	ReportOverlays:   ReportOverlaysDescription,
	ReportVerify:     ReportVerifyDescription,
	ReportServerInfo: ReportServerInfoDescription,
	PhotoPrepare:     PhotoPrepareDescription,
	DraftSave:        DraftSaveDescription,
	DraftLoad:        DraftLoadDescription,
	DraftClear:       DraftClearDescription,
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	if desc, exists := ToolDescriptions[toolName]; exists {
		return desc
	}
	return "Tool description not available"
}

// GetAllToolNames returns the sorted names of all tools
func GetAllToolNames() []string {
	names := make([]string, 0, len(ToolDescriptions))
	for name := range ToolDescriptions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
