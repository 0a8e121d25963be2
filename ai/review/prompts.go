package review

import "fmt"

// The generated review is composed of two independently prompted sections
// under fixed headings. Stage one asks for context-free factual knowledge;
// stage two analyzes stored user reviews (or explains their absence).

const (
	overviewHeading = "## Product Overview"
	insightsHeading = "## User Experience & Review Analysis"
)

// cacheQuery is the canonical query sentence whose embedding keys the
// response cache. It deterministically represents "a review of product X"
// regardless of how many stored reviews exist.
func cacheQuery(productName string) string {
	return fmt.Sprintf("Please provide a detailed review of %s which can help me in making a better and informed purchasing decision.", productName)
}

// insightsQuery is the retrieval query sentence embedded for the vector
// search over stored reviews.
func insightsQuery(productName string) string {
	return fmt.Sprintf("Please provide insights on %s based on user reviews.", productName)
}

const factualSystemPrompt = `You are an expert product researcher with extensive knowledge across various tech and lifestyle product categories.
Your task is to provide factual, informative details about a specific product based on your knowledge.
Focus on specifications, features, typical pricing, target audience, and how it compares to alternatives.
Only provide factual information that would be generally known about this product category.`

func factualUserPrompt(productName string) string {
	return fmt.Sprintf(`Please provide detailed factual information about %s.

Structure your response with these sections:

## Product Specifications & Features
- Detailed specifications and key features
- Pricing range (if known)
- Target audience and intended use

## Comparative Analysis
- How it compares to competitors or alternatives
- Unique selling points
- Typical drawbacks or limitations

Provide comprehensive, factual information to help understand this product objectively.
Do not include user reviews or subjective opinions in this section.`, productName)
}

const insightsSystemPrompt = `You are an expert review analyst who specializes in extracting meaningful insights from user reviews.
Your task is to analyze the provided user reviews and identify patterns, trends, and common feedback points.
Focus on being objective and extracting what actual users are saying about their experiences.`

func insightsUserPrompt(productName, context string) string {
	return fmt.Sprintf(`Based on the following user reviews for %s, provide an analysis of user experiences.

USER REVIEWS:
%s

Please analyze these reviews and structure your response with:

## User Experience Summary
- Overall sentiment and satisfaction level
- Most frequently mentioned points

## What Users Love
- Positive aspects mentioned across reviews
- Standout features according to users

## Common Concerns
- Issues or limitations mentioned by users
- Recurring complaints or drawbacks

## Recommendations Based on User Feedback
- Who would benefit most from this product according to actual users
- Situations where this product performs best

Only base your analysis on the actual user reviews provided. Be specific about what real users are saying.`, productName, context)
}

// noReviewsUserPrompt is used instead of insightsUserPrompt when no stored
// reviews match the product, so the model is told explicitly rather than
// being fed an empty context.
func noReviewsUserPrompt(productName string) string {
	return fmt.Sprintf(`There are currently no user reviews available for %s in our database.

Please provide:

## User Review Limitations
- A brief note explaining that your analysis is limited due to lack of specific user reviews
- General expectations about what users might experience with this type of product
- What potential buyers should look out for when considering this product

Be honest about the lack of specific user feedback while still providing helpful guidance.`, productName)
}

// composeReview joins the two generated sections under the fixed headings.
func composeReview(factualInfo, userInsights string) string {
	return fmt.Sprintf("%s\n%s\n\n%s\n%s\n", overviewHeading, factualInfo, insightsHeading, userInsights)
}
