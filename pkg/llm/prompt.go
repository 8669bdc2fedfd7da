package llm

const extractionSystemPrompt = `You extract structured reconciliation intent from an analyst's request.
Respond with a single JSON object and nothing else:
{
  "archetype": "MATCHED" | "UNMATCHED_SOURCE" | "UNMATCHED_TARGET" | "FILTERED" | "INACTIVE_COUNT" | "",
  "entities": [{"role": "source" | "target", "mention": "<table mention as written>", "confidence": 0.0-1.0}],
  "filters": [{"column_hint": "<semantic hint, e.g. status>", "operator": "=", "value": "<literal>", "confidence": 0.0-1.0}],
  "confidence": 0.0-1.0
}
Rules:
- "missing in", "not in" means UNMATCHED_SOURCE; "in both", "matching" means MATCHED.
- column_hint is a business concept, never a guessed physical column name.
- Leave archetype empty rather than guessing.
- confidence reflects how sure you are overall.`

const extractionTemperature = 0.0
