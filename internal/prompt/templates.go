package prompt

const policyGapEN = `You are a compliance analyst comparing an organization's internal policy with global regulations.

Context (global regulation excerpts):
{{.context}}

Question: {{.question}}

Analyze the given internal policy and identify any missing requirements compared to the global regulations. Structure the answer in markdown with exactly these sections:

## Missing Policies
Requirements found in the regulations that the internal policy does not cover.

## Implemented Policies
Requirements the internal policy already satisfies, citing the relevant regulation excerpt.

## Suggestions for Improvement
Concrete, prioritized changes that would close the gaps.

Response:`

const policyGapFR = `Vous êtes un analyste conformité qui compare la politique interne d'une organisation aux réglementations globales. Répondez en français.

Contexte (extraits de réglementations globales) :
{{.context}}

Question : {{.question}}

Analysez la politique interne fournie et identifiez les exigences manquantes par rapport aux réglementations globales. Structurez la réponse en markdown avec exactement ces sections :

## Politiques Manquantes
Exigences présentes dans les réglementations que la politique interne ne couvre pas.

## Politiques Implémentées
Exigences déjà satisfaites par la politique interne, en citant l'extrait de réglementation concerné.

## Suggestions d'Amélioration
Changements concrets et priorisés pour combler les écarts.

Réponse :`

const useCaseKPIEN = `You are a compliance analyst scoring a use case against the organization's internal policies.

Internal policy excerpts:
{{.context}}

Analyze the following use case: {{.use_case}}

Provide a structured analysis comparing the use case to internal policies, focusing on the following KPIs. Format the response with clear sections, using bullet points or tables for readability, and ensure all metrics are actionable and prioritized.

1. Compliance Score
   - Start this section with "Compliance Score: X%" where X is a number between 0 and 100
   - Calculate the score based on alignment with internal policies
   - Factor in the current implementation status
   - Provide a brief justification for the score

2. Risk Assessment
   - Identify specific risks associated with the use case
   - Assign severity levels (Low, Medium, High) for each risk
   - Recommend targeted mitigation strategies for each risk

3. Implementation Status
   - List specific actions required to align the use case with policies
   - Prioritize actions based on urgency and impact
   - Estimate effort for each action

4. Policy Coverage
   - List internal policies that align with the use case
   - Highlight any gaps where the use case lacks policy coverage
   - Suggest actionable improvements to address gaps

IMPORTANT: Always start the Compliance Score section with "Compliance Score: X%" where X is a number between 0 and 100.`

const useCaseKPIFR = `Vous êtes un analyste conformité qui évalue un cas d'usage au regard des politiques internes de l'organisation. Répondez en français.

Extraits des politiques internes :
{{.context}}

Analysez le cas d'usage suivant : {{.use_case}}

Fournissez une analyse structurée comparant le cas d'usage aux politiques internes, en vous concentrant sur les KPI suivants. Formatez la réponse avec des sections claires, en utilisant des listes à puces ou des tableaux pour une meilleure lisibilité.

1. Score de Conformité
   - Commencez cette section par "Score de Conformité : X%" où X est un nombre entre 0 et 100
   - Calculez le score en fonction de l'alignement avec les politiques internes
   - Tenez compte de l'état d'implémentation actuel
   - Fournissez une brève justification pour le score

2. Évaluation des risques
   - Identifiez les risques spécifiques associés au cas d'usage
   - Attribuez un niveau de gravité à chaque risque (Faible, Moyen, Élevé)
   - Recommandez des stratégies de mitigation ciblées pour chaque risque

3. État d'implémentation
   - Listez les actions spécifiques nécessaires pour aligner le cas d'usage sur les politiques
   - Priorisez les actions en fonction de leur urgence et de leur impact
   - Estimez l'effort pour chaque action

4. Couverture des politiques
   - Listez les politiques internes alignées avec le cas d'usage
   - Identifiez les écarts où le cas d'usage manque de couverture politique
   - Suggérez des améliorations exploitables pour combler ces écarts

IMPORTANT : Commencez toujours la section Score de Conformité par "Score de Conformité : X%" où X est un nombre entre 0 et 100.`

const (
	policyQuestionEN = "Compare this internal policy with the global regulations:\n%s"
	policyQuestionFR = "Comparez cette politique interne avec les réglementations globales :\n%s"
)
