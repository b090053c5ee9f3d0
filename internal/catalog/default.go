package catalog

import "stars-shop/internal/models"

// Default is the built-in storefront used when no Google Sheet is configured.
// Prices are in Telegram Stars.
func Default() *Catalog {
	return New([]models.Product{
		{
			ID:          "digital-course-js",
			Name:        "JavaScript Mastery Course",
			Description: "Complete JavaScript course from beginner to advanced. Includes 50+ hours of video content, exercises, and projects.",
			Price:       1,
			Image:       "/images/js-course.jpg",
			Category:    "Education",
			InStock:     true,
		},
		{
			ID:          "ebook-react-guide",
			Name:        "React Development Guide",
			Description: "Comprehensive e-book covering React fundamentals, hooks, state management, and best practices.",
			Price:       1,
			Image:       "/images/react-ebook.jpg",
			Category:    "Education",
			InStock:     true,
		},
		{
			ID:          "premium-templates",
			Name:        "Premium UI Templates Pack",
			Description: "Collection of 20+ professional UI templates for web and mobile applications. Includes Figma files.",
			Price:       1,
			Image:       "/images/ui-templates.jpg",
			Category:    "Design",
			InStock:     true,
		},
		{
			ID:          "coding-bootcamp",
			Name:        "Full-Stack Bootcamp Access",
			Description: "One-month access to our intensive full-stack development bootcamp with live sessions and mentorship.",
			Price:       1,
			Image:       "/images/bootcamp.jpg",
			Category:    "Education",
			InStock:     true,
		},
		{
			ID:          "ai-tool-subscription",
			Name:        "AI Assistant Pro (1 Month)",
			Description: "Premium subscription to our AI-powered development assistant with unlimited queries and advanced features.",
			Price:       1,
			Image:       "/images/ai-assistant.jpg",
			Category:    "Tools",
			InStock:     true,
		},
		{
			ID:          "mobile-app-icons",
			Name:        "Mobile App Icons Bundle",
			Description: "Collection of 500+ high-quality mobile app icons in multiple formats (SVG, PNG). Perfect for any project.",
			Price:       1,
			Image:       "/images/mobile-icons.jpg",
			Category:    "Design",
			InStock:     true,
		},
		{
			ID:          "web-dev-toolkit",
			Name:        "Web Developer Toolkit",
			Description: "Essential tools and utilities for web developers including code snippets, cheat sheets, and browser extensions.",
			Price:       1,
			Image:       "/images/dev-toolkit.jpg",
			Category:    "Tools",
			InStock:     false,
		},
		{
			ID:          "design-system",
			Name:        "Complete Design System",
			Description: "Professional design system with components, color palettes, typography, and style guides for modern applications.",
			Price:       1,
			Image:       "/images/design-system.jpg",
			Category:    "Design",
			InStock:     true,
		},
		{
			ID:          "api-documentation",
			Name:        "API Development Masterclass",
			Description: "Learn to build, document, and maintain robust APIs. Includes real-world examples and best practices.",
			Price:       1,
			Image:       "/images/api-course.jpg",
			Category:    "Education",
			InStock:     true,
		},
		{
			ID:          "growth-hacking-guide",
			Name:        "Startup Growth Hacking Guide",
			Description: "Proven strategies and tactics for rapid startup growth. Case studies from successful companies included.",
			Price:       1,
			Image:       "/images/growth-guide.jpg",
			Category:    "Business",
			InStock:     true,
		},
	})
}
